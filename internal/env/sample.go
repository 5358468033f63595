package env

// Sample is one averaged barometer reading.
type Sample struct {
	Source string `json:"source"` // "bme280" or "simulated"

	Temperature float64 `json:"temp_c"`       // °C, last compensated value of the burst
	Pressure    float64 `json:"pressure_pa"`  // Pa
	PressureHPa float64 `json:"pressure_hpa"` // hPa
}

// NewSample fills PressureHPa from a pressure in Pa.
func NewSample(source string, tempC, pressurePa float64) Sample {
	return Sample{
		Source:      source,
		Temperature: tempC,
		Pressure:    pressurePa,
		PressureHPa: pressurePa / 100.0, // 1 hPa = 100 Pa
	}
}
