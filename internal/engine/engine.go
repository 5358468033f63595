// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package engine runs the measurement cycle: initialise the sensor, collect a
// burst of compensated readings, reduce it into the pressure history and
// classify the trend.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/barometer_forecaster/internal/bme280"
	"github.com/relabs-tech/barometer_forecaster/internal/env"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
	"github.com/relabs-tech/barometer_forecaster/internal/sensors"
	"github.com/relabs-tech/barometer_forecaster/internal/store"
)

// Sensor is the register sequence the engine drives. *sensors.BME280
// implements it.
type Sensor interface {
	Reset(ctx context.Context) error
	ChipID(ctx context.Context) (byte, error)
	Configure(ctx context.Context) error
	ReadCalibration(ctx context.Context, cal *bme280.Calibration) error
	Trigger(ctx context.Context) error
	ReadRaw(ctx context.Context) (bme280.RawSample, error)
}

// State is the position in the measurement cycle.
type State int32

const (
	Idle State = iota
	Initializing
	Collecting
	Reducing
	Classifying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Collecting:
		return "collecting"
	case Reducing:
		return "reducing"
	case Classifying:
		return "classifying"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options tunes the cycle. Zero values fall back to the defaults of package
// forecast and sensors.
type Options struct {
	InnerPeriod time.Duration
	SettleDelay time.Duration
	BurstLength int
	// MaxAttempts bounds the measurements of one burst, counting skipped
	// samples. Defaults to three times BurstLength.
	MaxAttempts int

	Retention   time.Duration
	MinTrendAge time.Duration
	HistoryKey  string
	Source      string

	Now   func() time.Time
	NewID func() string
}

func (o *Options) setDefaults() {
	if o.InnerPeriod <= 0 {
		o.InnerPeriod = 10 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.BurstLength < 1 {
		o.BurstLength = forecast.DefaultBurstLength
	}
	if o.MaxAttempts < o.BurstLength {
		o.MaxAttempts = 3 * o.BurstLength
	}
	if o.Retention <= 0 {
		o.Retention = forecast.DefaultRetention
	}
	if o.MinTrendAge <= 0 {
		o.MinTrendAge = forecast.DefaultMinTrendAge
	}
	if o.HistoryKey == "" {
		o.HistoryKey = store.DefaultKey
	}
	if o.Source == "" {
		o.Source = "bme280"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// pending names what the settle timer continues with.
type pending int

const (
	pendingNone pending = iota
	pendingReset
	pendingMeasurement
)

// Engine owns all cycle state. Everything except State is confined to the
// goroutine running Run.
type Engine struct {
	sensor Sensor
	store  store.Store
	pub    events.Publisher
	logger *slog.Logger
	opts   Options

	cal   *bme280.Calibration
	comp  *bme280.Compensator
	avg   *forecast.Averager
	hist  *forecast.History
	trend forecast.TrendClassifier

	state       atomic.Int32
	initialized bool
	connected   bool
	cycleID     string
	attempts    int
	lastTemp    float64

	inner   *time.Ticker
	settle  *time.Timer
	waiting pending
}

// New builds an Engine. st may be nil to run without persistence.
func New(sensor Sensor, st store.Store, pub events.Publisher, logger *slog.Logger, opts Options) *Engine {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if st == nil {
		st = store.NewMemory()
	}
	cal := &bme280.Calibration{}
	return &Engine{
		sensor: sensor,
		store:  st,
		pub:    pub,
		logger: logger,
		opts:   opts,
		cal:    cal,
		comp:   bme280.NewCompensator(cal),
		avg:    forecast.NewAverager(opts.BurstLength),
		hist:   forecast.NewHistory(),
		trend:  forecast.NewTrendClassifier(opts.MinTrendAge),
	}
}

// State returns the current cycle state. Safe from any goroutine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Run restores the history and then serves outer ticks until ctx is done.
func (e *Engine) Run(ctx context.Context, ticks <-chan time.Time) error {
	e.restore(ctx)
	defer e.stopTimers()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped", "state", e.State())
			return nil
		case <-ticks:
			e.onOuterTick(ctx)
		case <-e.innerC():
			e.onInnerTick(ctx)
		case <-e.settleC():
			e.onSettled(ctx)
		}
	}
}

// ConnectionChanged is the sensor link callback. A lost link forces a full
// re-initialisation on the next outer tick.
//
// It must be called on the goroutine running Run, as a
// sensors.BreakerDevice does from inside the sensor access that changed the
// link state. It must not be called from any other goroutine.
func (e *Engine) ConnectionChanged(healthy bool, err error) {
	if !healthy {
		e.initialized = false
		e.setConnected(false, err)
		return
	}
	e.setConnected(true, nil)
}

func (e *Engine) setConnected(healthy bool, err error) {
	if healthy == e.connected && healthy {
		return
	}
	e.connected = healthy
	state := events.Connected
	if !healthy {
		state = events.ConnectionError
		e.logger.Warn("sensor link down", "err", err)
	} else {
		e.logger.Info("sensor link up")
	}
	e.publish(events.NewStatus(e.opts.Now(), state, err))
}

func (e *Engine) restore(ctx context.Context) {
	points, ok, err := e.store.Load(ctx, e.opts.HistoryKey)
	if err != nil {
		e.logger.Warn("history not restored", "key", e.opts.HistoryKey, "err", err)
		return
	}
	if !ok {
		return
	}
	e.hist = forecast.NewHistory(points...)
	dropped := e.hist.TrimOlderThan(e.opts.Now(), e.opts.Retention)
	e.logger.Info("history restored", "points", e.hist.Len(), "expired", dropped)
}

func (e *Engine) onOuterTick(ctx context.Context) {
	if st := e.State(); st != Idle {
		e.logger.Debug("outer tick ignored", "state", st, "cycle_id", e.cycleID)
		return
	}
	if !e.initialized {
		e.beginInit(ctx)
		return
	}
	e.startCycle()
}

func (e *Engine) beginInit(ctx context.Context) {
	e.setState(Initializing)
	if err := e.sensor.Reset(ctx); err != nil {
		e.fail("sensor reset failed", err)
		return
	}
	e.arm(sensors.ResetDelay, pendingReset)
}

func (e *Engine) finishInit(ctx context.Context) {
	id, err := e.sensor.ChipID(ctx)
	if err != nil {
		e.fail("chip id read failed", err)
		return
	}
	if id != sensors.ChipIDBME280 && id != sensors.ChipIDBMP280 {
		e.logger.Warn("unexpected chip id", "chip_id", fmt.Sprintf("0x%02X", id))
	} else {
		e.logger.Info("sensor found", "chip", sensors.ChipName(id))
	}

	if err := e.sensor.Configure(ctx); err != nil {
		e.fail("sensor configure failed", err)
		return
	}

	cal := &bme280.Calibration{}
	if err := e.sensor.ReadCalibration(ctx, cal); err != nil {
		e.fail("calibration read failed", err)
		return
	}
	e.cal = cal
	e.comp = bme280.NewCompensator(cal)
	e.initialized = true
	e.setConnected(true, nil)
	e.logger.Info("sensor calibrated", "dig_T1", cal.T1, "dig_P1", cal.P1)

	e.startCycle()
}

func (e *Engine) startCycle() {
	e.avg.Reset()
	e.attempts = 0
	e.cycleID = e.opts.NewID()
	e.setState(Collecting)
	e.inner = time.NewTicker(e.opts.InnerPeriod)
	e.logger.Debug("cycle started", "cycle_id", e.cycleID)
}

func (e *Engine) onInnerTick(ctx context.Context) {
	if e.waiting != pendingNone {
		// Previous measurement still settling.
		return
	}
	if e.attempts >= e.opts.MaxAttempts {
		e.abort(fmt.Errorf("burst incomplete after %d attempts (%d/%d samples)",
			e.attempts, e.avg.Len(), e.avg.Size()))
		return
	}
	e.attempts++
	if err := e.sensor.Trigger(ctx); err != nil {
		e.abort(err)
		return
	}
	e.arm(e.opts.SettleDelay, pendingMeasurement)
}

func (e *Engine) onSettled(ctx context.Context) {
	what := e.waiting
	e.waiting = pendingNone
	e.settle = nil

	switch what {
	case pendingReset:
		e.finishInit(ctx)
	case pendingMeasurement:
		e.measure(ctx)
	}
}

func (e *Engine) measure(ctx context.Context) {
	raw, err := e.sensor.ReadRaw(ctx)
	if err != nil {
		e.abort(err)
		return
	}

	temp, err := e.comp.CompensateTemperature(raw.Temperature)
	if err != nil {
		e.logger.Warn("sample skipped", "cycle_id", e.cycleID, "err", err)
		return
	}
	p, err := e.comp.CompensatePressure(raw.Pressure)
	if err != nil {
		e.logger.Warn("sample skipped", "cycle_id", e.cycleID, "err", err)
		return
	}
	if p == 0 {
		e.logger.Warn("sample skipped, pressure unavailable", "cycle_id", e.cycleID, "raw_pressure", raw.Pressure)
		return
	}

	e.lastTemp = temp
	e.avg.Add(float64(p))
	e.logger.Debug("sample", "cycle_id", e.cycleID, "temp_c", temp, "pressure_pa", p,
		"n", e.avg.Len(), "of", e.avg.Size())

	if e.avg.Complete() {
		e.stopInner()
		e.reduce(ctx)
	}
}

func (e *Engine) reduce(ctx context.Context) {
	e.setState(Reducing)
	now := e.opts.Now()

	if n := e.hist.TrimOlderThan(now, e.opts.Retention); n > 0 {
		e.logger.Debug("history trimmed", "removed", n)
	}
	mean, ok := e.avg.Reduce()
	if !ok {
		e.setState(Idle)
		return
	}
	e.hist.Append(forecast.DataPoint{Pressure: mean, Timestamp: now})

	if err := e.store.Save(ctx, e.opts.HistoryKey, e.hist.Points()); err != nil {
		e.logger.Error("history not saved", "key", e.opts.HistoryKey, "err", err)
	}

	sample := env.NewSample(e.opts.Source, e.lastTemp, mean)
	e.publish(events.NewPressure(e.cycleID, now, sample))
	e.logger.Info("pressure averaged", "cycle_id", e.cycleID,
		"pressure_hpa", sample.PressureHPa, "temp_c", sample.Temperature, "history", e.hist.Len())

	e.classify(now)
}

func (e *Engine) classify(now time.Time) {
	e.setState(Classifying)
	defer e.setState(Idle)

	rate, ok := e.trend.ComputeTrend(e.hist, now)
	if !ok {
		e.logger.Debug("no trend yet", "history", e.hist.Len())
		return
	}
	cat := forecast.Classify(rate)
	e.publish(events.NewForecast(e.cycleID, now, cat, rate))
	e.logger.Info("forecast", "cycle_id", e.cycleID, "category", cat, "rate_hpa_per_hour", rate)
}

// fail ends an initialisation attempt; the next outer tick retries.
func (e *Engine) fail(msg string, err error) {
	e.stopTimers()
	e.setState(Idle)
	e.logger.Warn(msg, "err", err, "transport", sensors.IsTransport(err))
}

// abort discards the partial burst; the next outer tick starts a new one.
func (e *Engine) abort(err error) {
	e.stopTimers()
	e.avg.Reset()
	e.setState(Idle)
	if errors.Is(err, context.Canceled) {
		return
	}
	e.logger.Warn("cycle aborted", "cycle_id", e.cycleID, "err", err, "transport", sensors.IsTransport(err))
}

func (e *Engine) publish(ev events.Event) {
	if e.pub != nil {
		e.pub.Publish(ev)
	}
}

func (e *Engine) arm(d time.Duration, what pending) {
	e.settle = time.NewTimer(d)
	e.waiting = what
}

func (e *Engine) innerC() <-chan time.Time {
	if e.inner == nil {
		return nil
	}
	return e.inner.C
}

func (e *Engine) settleC() <-chan time.Time {
	if e.settle == nil {
		return nil
	}
	return e.settle.C
}

func (e *Engine) stopInner() {
	if e.inner != nil {
		e.inner.Stop()
		e.inner = nil
	}
}

func (e *Engine) stopTimers() {
	e.stopInner()
	if e.settle != nil {
		e.settle.Stop()
		e.settle = nil
	}
	e.waiting = pendingNone
}
