// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/logging"
	"github.com/GermanBionicSystems/pt100/record"
	"github.com/GermanBionicSystems/pt100/rtd"
	"github.com/google/uuid"
	"periph.io/x/conn/v3/physic"
)

var log = logging.MustGetLogger("acquire")

var (
	// ErrStabilizationTimeout is returned when the chamber doesn't settle
	// within Opts.StabilizeTimeout.
	ErrStabilizationTimeout = errors.New("acquire: stabilization timeout")
	// ErrAborted is returned when the run context is canceled.
	ErrAborted = errors.New("acquire: aborted")
)

// Chamber is the climate chamber.
type Chamber interface {
	Start() error
	Stop() error
	SetTemperature(t physic.Temperature) error
	// Sense reads the chamber temperature and humidity.
	Sense(env *physic.Env) error
}

// Meter reads sensor resistances through a switch card.
type Meter interface {
	Resistance(channel int) (physic.ElectricResistance, error)
	// Halt opens all relays.
	Halt() error
}

// Sink receives the samples of a run.
type Sink interface {
	Append(s record.Sample) error
}

// Instruments are the devices of a run and the connections they own.
type Instruments struct {
	Chamber Chamber
	Meter   Meter
	// Closers are closed in reverse order by Close.
	Closers []io.Closer
}

// Close closes every connection, even when one of them fails.
func (in *Instruments) Close() error {
	var errs []error
	for i := len(in.Closers) - 1; i >= 0; i-- {
		if err := in.Closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	in.Closers = nil
	return errors.Join(errs...)
}

// Ramp is one step of the temperature program.
type Ramp struct {
	// Target is the chamber setpoint.
	Target physic.Temperature
	// Dwell is how long the channels are read once the chamber is stable.
	// At least one set of readings is taken even if Dwell is 0.
	Dwell time.Duration
}

// Opts controls the acquisition loop.
type Opts struct {
	// Channels are the switch card channels to read, in reading order.
	Channels []int
	// Tolerance is the band around the setpoint in which the chamber is
	// considered at temperature.
	Tolerance physic.Temperature
	// PollInterval is the time between two chamber readings.
	PollInterval time.Duration
	// SettleTime is how long the chamber must stay in band before readings
	// start. 0 accepts the first in band reading.
	SettleTime time.Duration
	// StabilizeTimeout fails the run when a setpoint isn't reached in time.
	// 0 waits forever.
	StabilizeTimeout time.Duration
	// KeepRunning leaves the chamber switched on at the end of the run.
	KeepRunning bool
	// Curve converts resistances to the sensor temperature stored with each
	// sample. Defaults to rtd.PT100.
	Curve rtd.Curve
}

// DefaultOpts reads one channel within ±0.1 K, polling every 10s.
var DefaultOpts = Opts{
	Channels:     []int{101},
	Tolerance:    100 * physic.MilliKelvin,
	PollInterval: 10 * time.Second,
	Curve:        rtd.PT100,
}

// Phase is the state of the acquisition loop.
type Phase int

const (
	Starting Phase = iota
	Stabilizing
	Dwelling
	Finished
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Stabilizing:
		return "stabilizing"
	case Dwelling:
		return "dwelling"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ChannelReading is the last reading of one channel.
type ChannelReading struct {
	Channel    int
	Resistance physic.ElectricResistance
	Sensor     physic.Temperature
	Valid      bool
}

// Status is reported to the Observer at every poll.
type Status struct {
	Phase       Phase
	Step, Steps int
	Setpoint    physic.Temperature
	Env         physic.Env
	Tolerance   physic.Temperature
	InTolerance bool
	// Readings is set while dwelling.
	Readings []ChannelReading
}

// Deviation returns the chamber temperature minus the setpoint.
func (s *Status) Deviation() physic.Temperature {
	return s.Env.Temperature - s.Setpoint
}

// Observer is notified of the progress of a run.
type Observer interface {
	Observe(s Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Status)

// Observe implements Observer.
func (f ObserverFunc) Observe(s Status) {
	f(s)
}

// Summary describes a finished, failed or aborted run.
type Summary struct {
	Run               string
	Started, Finished time.Time
	// Samples is the number of samples handed to the sink.
	Samples int
	// Skipped counts dwell polls where the chamber had left the band.
	Skipped    int
	PerChannel map[int]int
}

// Runner runs one acquisition. It is not reusable.
type Runner struct {
	in   *Instruments
	plan []Ramp
	sink Sink
	opts Opts
	obs  Observer
	id   string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New validates the program and returns a Runner owning in.
func New(in *Instruments, plan []Ramp, sink Sink, opts *Opts) (*Runner, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if in == nil || in.Chamber == nil || in.Meter == nil {
		return nil, errors.New("acquire: missing instrument")
	}
	if sink == nil {
		return nil, errors.New("acquire: missing sink")
	}
	if len(plan) == 0 {
		return nil, errors.New("acquire: empty temperature program")
	}
	for i, r := range plan {
		if r.Dwell < 0 {
			return nil, fmt.Errorf("acquire: ramp %d: negative dwell", i)
		}
	}
	if len(o.Channels) == 0 {
		return nil, errors.New("acquire: no channel")
	}
	seen := map[int]bool{}
	for _, ch := range o.Channels {
		if seen[ch] {
			return nil, fmt.Errorf("acquire: duplicate channel %d", ch)
		}
		seen[ch] = true
	}
	if o.Tolerance <= 0 {
		return nil, errors.New("acquire: tolerance must be positive")
	}
	if o.PollInterval <= 0 {
		return nil, errors.New("acquire: poll interval must be positive")
	}
	if o.SettleTime < 0 || o.StabilizeTimeout < 0 {
		return nil, errors.New("acquire: negative duration")
	}
	if o.Curve.R0 == 0 {
		o.Curve = rtd.PT100
	}
	return &Runner{
		in:    in,
		plan:  plan,
		sink:  sink,
		opts:  o,
		id:    uuid.NewString(),
		now:   time.Now,
		sleep: sleep,
	}, nil
}

// ID returns the run identifier stored with every sample.
func (r *Runner) ID() string {
	return r.id
}

// SetObserver registers o. It must be called before Run.
func (r *Runner) SetObserver(o Observer) {
	r.obs = o
}

// Run executes the temperature program. The instruments are released when it
// returns.
func (r *Runner) Run(ctx context.Context) (sum Summary, err error) {
	sum = Summary{Run: r.id, Started: r.now(), PerChannel: map[int]int{}}
	defer func() {
		sum.Finished = r.now()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrAborted, err)
		}
		if serr := r.release(); serr != nil {
			if err == nil {
				err = serr
			} else {
				log.Warningf("releasing instruments: %v", serr)
			}
		}
		r.observe(Status{Phase: Finished, Step: len(r.plan), Steps: len(r.plan)})
	}()

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	log.Infof("run %s: %d ramps, channels %v, tolerance ±%s", r.id, len(r.plan), r.opts.Channels, r.opts.Tolerance)
	if err := r.in.Chamber.Start(); err != nil {
		return sum, err
	}
	var env physic.Env
	if err := r.in.Chamber.Sense(&env); err != nil {
		return sum, err
	}
	log.Infof("chamber at %s, %s", env.Temperature, env.Humidity)
	r.observe(Status{Phase: Starting, Steps: len(r.plan), Env: env, Tolerance: r.opts.Tolerance})

	for i, ramp := range r.plan {
		log.Noticef("step %d/%d: target %s, dwell %s", i+1, len(r.plan), ramp.Target, ramp.Dwell)
		if err := r.in.Chamber.SetTemperature(ramp.Target); err != nil {
			return sum, err
		}
		env, err := r.stabilize(ctx, i, ramp)
		if err != nil {
			return sum, err
		}
		if err := r.dwell(ctx, i, ramp, env, &sum); err != nil {
			return sum, err
		}
	}
	log.Noticef("run %s complete: %d samples, %d skipped polls", r.id, sum.Samples, sum.Skipped)
	return sum, nil
}

// stabilize polls the chamber until it stayed in band for SettleTime and
// returns the last reading.
func (r *Runner) stabilize(ctx context.Context, step int, ramp Ramp) (physic.Env, error) {
	start := r.now()
	var inBand time.Time
	for {
		var env physic.Env
		if err := ctx.Err(); err != nil {
			return env, err
		}
		if err := r.in.Chamber.Sense(&env); err != nil {
			return env, err
		}
		now := r.now()
		ok := r.within(env.Temperature, ramp.Target)
		r.observe(Status{
			Phase: Stabilizing, Step: step, Steps: len(r.plan), Setpoint: ramp.Target,
			Env: env, Tolerance: r.opts.Tolerance, InTolerance: ok,
		})
		if ok {
			if inBand.IsZero() {
				inBand = now
			}
			if now.Sub(inBand) >= r.opts.SettleTime {
				log.Infof("step %d: stable at %s after %s", step+1, env.Temperature, now.Sub(start).Round(time.Second))
				return env, nil
			}
		} else {
			inBand = time.Time{}
			log.Debugf("step %d: target %s±%s, current %s", step+1, ramp.Target, r.opts.Tolerance, env.Temperature)
		}
		if r.opts.StabilizeTimeout > 0 && now.Sub(start) >= r.opts.StabilizeTimeout {
			return env, fmt.Errorf("%w: %s not reached within %s, chamber at %s", ErrStabilizationTimeout, ramp.Target, r.opts.StabilizeTimeout, env.Temperature)
		}
		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return env, err
		}
	}
}

// dwell reads every channel at each poll until the dwell time elapsed. The
// first poll uses env, the reading that ended stabilization. A poll where the
// chamber left the band is skipped and the chamber waited for again.
func (r *Runner) dwell(ctx context.Context, step int, ramp Ramp, env physic.Env, sum *Summary) error {
	end := r.now().Add(ramp.Dwell)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := Status{
			Phase: Dwelling, Step: step, Steps: len(r.plan), Setpoint: ramp.Target,
			Env: env, Tolerance: r.opts.Tolerance,
		}
		if !r.within(env.Temperature, ramp.Target) {
			sum.Skipped++
			log.Warningf("step %d: chamber left the band (%s), readings skipped", step+1, env.Temperature)
			r.observe(st)
			if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
				return err
			}
			var err error
			if env, err = r.stabilize(ctx, step, ramp); err != nil {
				return err
			}
			continue
		}
		st.InTolerance = true
		for _, ch := range r.opts.Channels {
			res, err := r.in.Meter.Resistance(ch)
			if err != nil {
				return err
			}
			s := record.Sample{
				Time:       r.now(),
				Run:        r.id,
				Step:       step,
				Setpoint:   ramp.Target,
				Chamber:    env.Temperature,
				Humidity:   env.Humidity,
				Channel:    ch,
				Resistance: res,
			}
			if t, err := r.opts.Curve.Temperature(res); err == nil {
				s.Sensor, s.SensorValid = t, true
			}
			if err := r.sink.Append(s); err != nil {
				return err
			}
			sum.Samples++
			sum.PerChannel[ch]++
			st.Readings = append(st.Readings, ChannelReading{Channel: ch, Resistance: res, Sensor: s.Sensor, Valid: s.SensorValid})
			log.Debugf("step %d: channel %d: %s (%s)", step+1, ch, res, s.Sensor)
		}
		r.observe(st)
		if !r.now().Before(end) {
			return nil
		}
		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return err
		}
		if err := r.in.Chamber.Sense(&env); err != nil {
			return err
		}
	}
}

// release leaves the bench in a safe state and closes the connections.
func (r *Runner) release() error {
	var errs []error
	if !r.opts.KeepRunning {
		if err := r.in.Chamber.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.in.Meter.Halt(); err != nil {
		errs = append(errs, err)
	}
	if err := r.in.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runner) within(t, target physic.Temperature) bool {
	return common.Abs(t-target) <= r.opts.Tolerance
}

func (r *Runner) observe(s Status) {
	if r.obs != nil {
		r.obs.Observe(s)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
