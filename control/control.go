// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package control runs the two cooperating periodic tasks that glue the
// expander, hardware, sensors, input conditioner, logic evaluator and
// strike scheduler together: a fast 250ms input-scan task and a slow 60s
// sensor/logic task, serialised onto the Hardware Interface by a single
// commit mutex.
package control

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tcmctl/cabinet/eventlog"
	"github.com/tcmctl/cabinet/hardware"
	"github.com/tcmctl/cabinet/input"
	"github.com/tcmctl/cabinet/logic"
	"github.com/tcmctl/cabinet/sensors"
	"github.com/tcmctl/cabinet/state"
	"github.com/tcmctl/cabinet/strike"
)

// OutputMapper composes the logic evaluator's six logical outputs into
// physical relay/transistor bank states via the configured channel map.
type OutputMapper interface {
	Relays(outputs state.Outputs) hardware.RelayStates
	Transistors(outputs state.Outputs) hardware.TransistorStates
}

// Loop owns every collaborator needed to run the control plane. The
// exported fields are set before Start and not changed while the loop runs.
// State and the Strike scheduler carry their own locks; the Conditioner,
// the hysteresis memory and the last-known sensors are touched only under
// commitMu.
type Loop struct {
	HW        *hardware.Interface
	Sensors   *sensors.BufferedReader
	State     *state.State
	Cond      *input.Conditioner
	Strikes   *strike.Scheduler
	Mapper    OutputMapper
	Events    eventlog.Logger
	Thresholds logic.Thresholds

	FastTick time.Duration
	SlowTick time.Duration

	// commitMu serialises every hardware commit/read sequence so the fast
	// and slow tasks never race on the expander bus.
	commitMu sync.Mutex

	// lastSensors is the latest sensor snapshot known to either task;
	// protected by commitMu since both tasks read/write it around a
	// commit.
	lastSensors state.Sensors
	hasSensors  bool

	prior logic.Prior

	stop chan struct{}
	done sync.WaitGroup
}

// New builds a Loop with the spec's default tick periods (250ms fast,
// 60s slow).
func New(hw *hardware.Interface, sr *sensors.BufferedReader, st *state.State, cond *input.Conditioner, sc *strike.Scheduler, mapper OutputMapper, events eventlog.Logger, th logic.Thresholds) *Loop {
	if events == nil {
		events = eventlog.NullLogger{}
	}
	return &Loop{
		HW:         hw,
		Sensors:    sr,
		State:      st,
		Cond:       cond,
		Strikes:    sc,
		Mapper:     mapper,
		Events:     events,
		Thresholds: th,
		FastTick:   250 * time.Millisecond,
		SlowTick:   60 * time.Second,
		stop:       make(chan struct{}),
	}
}

// Start launches the fast and slow tasks as goroutines and returns
// immediately.
func (l *Loop) Start() {
	l.done.Add(2)
	go l.runFast()
	go l.runSlow()
}

// Stop asks both tasks to finish their current iteration, flushes the
// event log buffer if it supports flushing, and waits for both to return.
func (l *Loop) Stop() {
	close(l.stop)
	l.done.Wait()
	if f, ok := l.Events.(interface{ Flush() }); ok {
		f.Flush()
	}
}

func (l *Loop) runFast() {
	defer l.done.Done()
	t := time.NewTicker(l.FastTick)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.safely("fast", l.fastIteration)
		}
	}
}

func (l *Loop) runSlow() {
	defer l.done.Done()
	t := time.NewTicker(l.SlowTick)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.safely("slow", l.slowIteration)
		}
	}
}

// safely runs fn, recovering from any panic and, on either a panic or a
// returned error, recording RuntimeState.error and sleeping one fast tick
// before returning — per §4.8, no error aborts the control loop.
func (l *Loop) safely(task string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s task panic: %v", task, r)
			log.Print(msg)
			l.State.Update(state.WithError(msg))
			time.Sleep(l.FastTick)
		}
	}()
	if err := fn(); err != nil {
		log.Printf("%s task error: %v", task, err)
		l.State.Update(state.WithError(err.Error()))
		time.Sleep(l.FastTick)
	}
}

// fastIteration reads inputs, conditions them, and — only if the
// conditioner produced a new accepted door or flood state — evaluates
// logic against the last-known sensors and commits. Flood values between
// full slow cycles are frozen by the conditioner's own refresh timer, not
// recomputed here.
func (l *Loop) fastIteration() error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	raw, err := l.readRawInputs(false)
	if err != nil {
		return err
	}
	result := l.Cond.Apply(raw)
	if !result.Changed {
		l.State.Update(state.WithInputs(stateInputs(result.States)))
		return nil
	}
	return l.evaluateAndCommit(result.States, nil)
}

// slowIteration reads sensors, performs a fresh input read, evaluates
// logic, commits, and updates RuntimeState including the sensor snapshot.
// It invalidates the buffered sensor cache so the sensor read is fresh. It
// does not reset the conditioner's flood refresh timer: flood channels are
// re-sampled only on that timer's own interval.
func (l *Loop) slowIteration() error {
	l.Sensors.Invalidate()
	reading := l.Sensors.ReadAll()
	for _, e := range reading.Errors {
		l.Events.Log(eventlog.EventSensor, e, nil)
	}

	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	raw, err := l.readRawInputs(true)
	if err != nil {
		return err
	}
	result := l.Cond.Apply(raw)
	snap := sensorsToState(reading.Snapshot)
	l.lastSensors = snap
	l.hasSensors = true
	return l.evaluateAndCommit(result.States, &snap)
}

func (l *Loop) readRawInputs(withDIP bool) (map[string]bool, error) {
	ins, err := l.HW.ReadInputs(withDIP)
	if err != nil {
		return nil, fmt.Errorf("control: read inputs: %w", err)
	}
	return ins.Named, nil
}

// evaluateAndCommit runs the logic evaluator against conditioned inputs
// and the latest known sensors, composes with active strike force-on
// labels, commits to hardware, and updates RuntimeState. sensorsOverride,
// when non-nil, both supplies the temperature used this cycle and is
// published as RuntimeState's sensor snapshot; storing it as the
// last-known snapshot is left to the caller.
func (l *Loop) evaluateAndCommit(conditioned map[string]bool, sensorsOverride *state.Sensors) error {
	snap := l.lastSensors
	if sensorsOverride != nil {
		snap = *sensorsOverride
	}
	manual := logic.Manual{}
	if s := l.State.Read(); s.ManualMode {
		manual = logic.Manual{Enabled: true, Overrides: s.ManualOverrides}
	}

	outputs, reason := logic.Evaluate(l.Thresholds, logic.Snapshot(conditioned), snap.TempCab, l.prior, manual)
	l.prior = logic.Prior{Heater: outputs.Heater, Cooler: outputs.Cooler, Fans: outputs.Fan48V}

	forceOn := l.Strikes.ActiveLabels(time.Now(), func(label string) {
		l.Events.Log(eventlog.EventStrike, "release "+label, nil)
	})

	relays := l.Mapper.Relays(outputs)
	transistors := l.Mapper.Transistors(outputs)
	if err := l.HW.CommitOutputs(relays, transistors, forceOn); err != nil {
		return fmt.Errorf("control: commit outputs: %w", err)
	}
	if err := l.HW.SetBuzzer(outputs.Alarm && !l.State.Read().BuzzerMuted); err != nil {
		return fmt.Errorf("control: set buzzer: %w", err)
	}

	until, active := l.Strikes.MaxExpiry()
	opts := []state.Option{
		state.WithInputs(stateInputs(conditioned)),
		state.WithOutputs(outputs),
		state.WithAlarmReason(reason),
		state.WithStrikeActiveUntil(until, active),
		state.WithError(""),
	}
	if sensorsOverride != nil {
		opts = append(opts, state.WithSensors(snap))
	}
	l.State.Update(opts...)
	l.Events.Log(eventlog.EventOutput, "commit", nil)
	return nil
}

func stateInputs(m map[string]bool) state.Inputs {
	out := make(state.Inputs, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sensorsToState(s sensors.Snapshot) state.Sensors {
	return state.Sensors{
		TempBatt: s.TempBatt,
		HumBatt:  s.HumBatt,
		TempCab:  s.TempCab,
		HumCab:   s.HumCab,
	}
}
