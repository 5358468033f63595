// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package engine

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/barometer_forecaster/internal/bme280"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
	"github.com/relabs-tech/barometer_forecaster/internal/sensors"
	"github.com/relabs-tech/barometer_forecaster/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// datasheet raw codes: 25.08 °C, 100656 Pa.
var datasheetRaw = bme280.RawSample{Pressure: 415148, Temperature: 519888}

type recorder struct {
	ch chan events.Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan events.Event, 64)} }

func (r *recorder) Publish(e events.Event) { r.ch <- e }

func (r *recorder) next(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func (r *recorder) none(t *testing.T, kind events.Kind, wait time.Duration) {
	t.Helper()
	timeout := time.After(wait)
	for {
		select {
		case e := <-r.ch:
			if e.Kind == kind {
				t.Fatalf("unexpected %s event: %v", kind, e)
			}
		case <-timeout:
			return
		}
	}
}

func testOptions(now time.Time) Options {
	return Options{
		InnerPeriod: 5 * time.Millisecond,
		SettleDelay: time.Millisecond,
		BurstLength: 4,
		Source:      "simulated",
		Now:         func() time.Time { return now },
		NewID:       func() string { return "cycle" },
	}
}

func startEngine(t *testing.T, e *Engine) chan time.Time {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Run(ctx, ticks); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ticks
}

func simulated() *sensors.SimulatedDevice {
	sim := sensors.NewSimulatedDevice()
	sim.SetRaw(datasheetRaw)
	return sim
}

func TestEngine_FirstCycle(t *testing.T) {
	sim := simulated()
	st := store.NewMemory()
	rec := newRecorder()
	e := New(sensors.NewBME280(sim, sensors.DefaultCtrlMeas, sensors.DefaultConfig), st, rec, nil, testOptions(t0))

	ticks := startEngine(t, e)
	ticks <- t0

	status := rec.next(t, events.KindStatus)
	if status.Status.State != events.Connected {
		t.Errorf("status = %s, want connected", status.Status.State)
	}

	ev := rec.next(t, events.KindPressure)
	if ev.Reading.Pressure != 100656 || ev.Reading.Source != "simulated" || ev.CycleID != "cycle" {
		t.Errorf("reading = %+v", ev.Reading)
	}
	if math.Abs(ev.Reading.Temperature-25.08) > 0.01 {
		t.Errorf("temperature = %v", ev.Reading.Temperature)
	}

	// A single point cannot produce a trend.
	rec.none(t, events.KindForecast, 50*time.Millisecond)

	points, ok, _ := st.Load(context.Background(), store.DefaultKey)
	if !ok || len(points) != 1 || points[0].Pressure != 100656 || !points[0].Timestamp.Equal(t0) {
		t.Errorf("persisted = %+v", points)
	}
	if sim.Measurements() != 4 {
		t.Errorf("measurements = %d, want 4", sim.Measurements())
	}
	if e.State() != Idle {
		t.Errorf("state = %s, want idle", e.State())
	}
}

func TestEngine_ForecastFromRestoredHistory(t *testing.T) {
	now := t0.Add(40 * time.Minute)
	st := store.NewMemory()
	_ = st.Save(context.Background(), store.DefaultKey, []forecast.DataPoint{
		{Pressure: 99000, Timestamp: now.Add(-3 * time.Hour)}, // expired
		{Pressure: 101300, Timestamp: t0},
	})
	rec := newRecorder()
	e := New(sensors.NewBME280(simulated(), sensors.DefaultCtrlMeas, sensors.DefaultConfig), st, rec, nil, testOptions(now))

	ticks := startEngine(t, e)
	ticks <- now

	ev := rec.next(t, events.KindForecast)
	want := (1006.56 - 1013.0) / (40.0 / 60.0)
	if math.Abs(ev.Forecast.Rate-want) > 1e-9 {
		t.Errorf("rate = %v, want %v", ev.Forecast.Rate, want)
	}
	if ev.Forecast.Category != forecast.ThunderStorm {
		t.Errorf("category = %v, want ThunderStorm", ev.Forecast.Category)
	}

	points, _, _ := st.Load(context.Background(), store.DefaultKey)
	if len(points) != 2 || points[0].Pressure != 101300 {
		t.Errorf("persisted = %+v", points)
	}
}

func TestEngine_TicksDuringCycleIgnored(t *testing.T) {
	sim := simulated()
	rec := newRecorder()
	opts := testOptions(t0)
	opts.InnerPeriod = 20 * time.Millisecond
	e := New(sensors.NewBME280(sim, sensors.DefaultCtrlMeas, sensors.DefaultConfig), nil, rec, nil, opts)

	ticks := startEngine(t, e)
	ticks <- t0
	for i := 0; i < 3; i++ {
		ticks <- t0
	}

	rec.next(t, events.KindPressure)
	rec.none(t, events.KindPressure, 100*time.Millisecond)
	if sim.Measurements() != 4 {
		t.Errorf("measurements = %d, want 4", sim.Measurements())
	}
}

func TestEngine_TransportErrorRetriesOnNextTick(t *testing.T) {
	sim := simulated()
	sim.SetFault(sensors.ErrSimulatedFault)
	rec := newRecorder()

	var e *Engine
	dev := sensors.NewBreakerDevice(sim, 1, 10*time.Millisecond, func(healthy bool, err error) {
		e.ConnectionChanged(healthy, err)
	})
	e = New(sensors.NewBME280(dev, sensors.DefaultCtrlMeas, sensors.DefaultConfig), nil, rec, nil, testOptions(t0))

	ticks := startEngine(t, e)
	ticks <- t0

	down := rec.next(t, events.KindStatus)
	if down.Status.State != events.ConnectionError || down.Status.Error == "" {
		t.Fatalf("status = %+v", down.Status)
	}

	sim.SetFault(nil)
	time.Sleep(20 * time.Millisecond)
	ticks <- t0

	up := rec.next(t, events.KindStatus)
	if up.Status.State != events.Connected {
		t.Fatalf("status = %+v", up.Status)
	}
	rec.next(t, events.KindPressure)
}

func TestEngine_FaultMidBurstDiscardsSamples(t *testing.T) {
	sim := simulated()
	rec := newRecorder()
	opts := testOptions(t0)
	opts.InnerPeriod = 20 * time.Millisecond
	e := New(sensors.NewBME280(sim, sensors.DefaultCtrlMeas, sensors.DefaultConfig), nil, rec, nil, opts)

	ticks := startEngine(t, e)
	ticks <- t0
	rec.next(t, events.KindStatus)

	deadline := time.Now().Add(2 * time.Second)
	for sim.Measurements() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	sim.SetFault(sensors.ErrSimulatedFault)
	rec.none(t, events.KindPressure, 120*time.Millisecond)
	if e.State() != Idle {
		t.Fatalf("state after fault = %s, want idle", e.State())
	}

	sim.SetFault(nil)
	before := sim.Measurements()
	ticks <- t0
	rec.next(t, events.KindPressure)
	if got := sim.Measurements() - before; got != 4 {
		t.Errorf("retry cycle took %d measurements, want a full burst of 4", got)
	}
}

// brokenSensor reports a calibration with dig_P1 = 0, so every pressure
// compensation hits the divide guard.
type brokenSensor struct {
	mu       sync.Mutex
	triggers int
}

func (s *brokenSensor) Reset(context.Context) error                       { return nil }
func (s *brokenSensor) ChipID(context.Context) (byte, error)              { return sensors.ChipIDBME280, nil }
func (s *brokenSensor) Configure(context.Context) error                   { return nil }
func (s *brokenSensor) ReadRaw(context.Context) (bme280.RawSample, error) { return datasheetRaw, nil }

func (s *brokenSensor) ReadCalibration(_ context.Context, cal *bme280.Calibration) error {
	t := make([]byte, 6)
	binary.LittleEndian.PutUint16(t[0:], 27504)
	binary.LittleEndian.PutUint16(t[2:], 26435)
	binary.LittleEndian.PutUint16(t[4:], uint16(0xFC18)) // -1000
	if err := cal.SetTemperatureParams(t); err != nil {
		return err
	}
	return cal.SetPressureParams(make([]byte, 18))
}

func (s *brokenSensor) Trigger(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
	return nil
}

func (s *brokenSensor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

func TestEngine_UnavailablePressureBoundsBurst(t *testing.T) {
	sensor := &brokenSensor{}
	rec := newRecorder()
	opts := testOptions(t0)
	opts.MaxAttempts = 6
	e := New(sensor, nil, rec, nil, opts)

	ticks := startEngine(t, e)
	ticks <- t0

	rec.none(t, events.KindPressure, 200*time.Millisecond)
	if got := sensor.count(); got != 6 {
		t.Errorf("triggers = %d, want 6", got)
	}
	if e.State() != Idle {
		t.Errorf("state = %s, want idle", e.State())
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Collecting: "collecting", Reducing: "reducing", Classifying: "classifying", Initializing: "initializing"} {
		if s.String() != want {
			t.Errorf("%d.String() = %s", s, s.String())
		}
	}
}
