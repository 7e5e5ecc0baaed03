// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command cabinetctl is the supervisory controller daemon: it loads
// configuration, opens the two expander buses, constructs every
// collaborator once, and runs the control loop until asked to stop.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/tcmctl/cabinet/busprobe"
	"github.com/tcmctl/cabinet/config"
	"github.com/tcmctl/cabinet/control"
	"github.com/tcmctl/cabinet/eventlog"
	"github.com/tcmctl/cabinet/expander"
	"github.com/tcmctl/cabinet/hardware"
	"github.com/tcmctl/cabinet/input"
	"github.com/tcmctl/cabinet/logic"
	"github.com/tcmctl/cabinet/sensors"
	"github.com/tcmctl/cabinet/state"
	"github.com/tcmctl/cabinet/strike"
)

func mainImpl() error {
	configPath := flag.String("config", "/etc/cabinet/config.yaml", "path to the YAML configuration document")
	outSPI := flag.String("out-spi", "", "SPI port name for the output expander (e.g. /dev/spidev0.0)")
	inSPI := flag.String("in-spi", "", "SPI port name for the input expander (e.g. /dev/spidev0.1)")
	eventLog := flag.String("event-log", "", "path to append newline-delimited JSON events to, empty disables logging")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("cabinetctl: periph host init: %w", err)
	}

	if bridges, err := busprobe.Scan(); err != nil {
		log.Print(err)
	} else {
		for _, b := range bridges {
			log.Printf("busprobe: found %s", b)
		}
	}

	outBus, err := expander.Open(expander.RoleOutput, spiConnOpener(*outSPI))
	if err != nil && !errors.Is(err, expander.ErrBusUnavailable) {
		return fmt.Errorf("cabinetctl: open output expander: %w", err)
	} else if err != nil {
		log.Print(err)
	}
	inBus, err := expander.Open(expander.RoleInput, spiConnOpener(*inSPI))
	if err != nil && !errors.Is(err, expander.ErrBusUnavailable) {
		return fmt.Errorf("cabinetctl: open input expander: %w", err)
	} else if err != nil {
		log.Print(err)
	}

	inputMap := make(map[string]hardware.Channel)
	for name, ch := range cfg.Inputs.DoorChannels {
		if c, ok := parseInputChannel(ch); ok {
			inputMap[name] = c
		}
	}
	for name, ch := range cfg.Inputs.FloodChannels {
		if c, ok := parseInputChannel(ch); ok {
			inputMap[name] = c
		}
	}

	var buzzer hardware.BuzzerPin
	if pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.Sensors.Buzzer.GPIOPin)); pin != nil {
		buzzer = buzzerPin{pin}
	}

	hw := hardware.New(outBus, inBus, hardware.Polarity{
		RelaysActiveLow:      cfg.Outputs.Relays.ActiveLow,
		TransistorsActiveLow: cfg.Outputs.Transistors.ActiveLow,
		DIPOnIsHigh:          cfg.Inputs.Polarities.DIPOnIsHigh,
		DoorOpenIsHigh:       cfg.Inputs.Polarities.DoorOpenIsHigh,
		FloodLowIsFlood:      cfg.Inputs.Polarities.FloodLowIsFlood,
	}, inputMap, buzzer)

	mapper := hardware.NewOutputMapping(cfg.Outputs.Relays.Map, cfg.Outputs.Transistors.Map)

	var events eventlog.Logger = eventlog.NullLogger{}
	var logFile *os.File
	if *eventLog != "" {
		logFile, err = os.OpenFile(*eventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cabinetctl: open event log: %w", err)
		}
		defer logFile.Close()
		events = eventlog.NewBuffered(logFile)
	}

	sensorReader := sensors.New(nil, nil, nil, nil) // board-specific probes wired by the deployer
	buffered := sensors.NewBuffered(sensorReader)

	st := state.New()
	cond := input.New()
	cond.AntiGlitchMS = cfg.Inputs.AntiGlitchMS
	cond.AntiFlapSeconds = int(cfg.Inputs.AntiFlapSeconds)
	cond.FloodRefreshSeconds = int(cfg.Loops.FloodRefreshSeconds)

	sched := strike.New(control.NewStrikeResolver(cfg))
	sched.Duration = time.Duration(cfg.Strike.DefaultDurationSeconds * float64(time.Second))

	th := logic.Thresholds{
		HeaterC: cfg.Thresholds.HeaterC,
		CoolerC: cfg.Thresholds.CoolerC,
		FanC:    cfg.Thresholds.FanC,
		H:       cfg.Thresholds.Hysteresis,
	}

	loop := control.New(hw, buffered, st, cond, sched, mapper, events, th)
	loop.FastTick = time.Duration(cfg.Loops.FastTickSeconds * float64(time.Second))
	loop.SlowTick = time.Duration(cfg.Loops.LogicTickSeconds * float64(time.Second))

	loop.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Print("shutting down")
	loop.Stop()
	return nil
}

// spiConnOpener returns the expander.Open callback for a named SPI port,
// translating each candidate expander.Mode into the equivalent spi.Mode
// and wrapping the resulting spi.Conn as an expander.Conn.
func spiConnOpener(portName string) func(m expander.Mode) (expander.Conn, error) {
	return func(m expander.Mode) (expander.Conn, error) {
		if portName == "" {
			return nil, errors.New("cabinetctl: no SPI port configured")
		}
		port, err := spireg.Open(portName)
		if err != nil {
			return nil, err
		}
		conn, err := port.Connect(1*physic.MegaHertz, spiModeFor(m), 8)
		if err != nil {
			port.Close()
			return nil, err
		}
		return conn, nil
	}
}

func spiModeFor(m expander.Mode) spi.Mode {
	switch m {
	case expander.Mode1:
		return spi.Mode1
	case expander.Mode2:
		return spi.Mode2
	case expander.Mode3:
		return spi.Mode3
	default:
		return spi.Mode0
	}
}

// parseInputChannel parses a config channel string like "A3" or "B0" into
// a hardware.Channel.
func parseInputChannel(s string) (hardware.Channel, bool) {
	if len(s) < 2 {
		return hardware.Channel{}, false
	}
	var bank hardware.Bank
	switch s[0] {
	case 'A':
		bank = hardware.BankA
	case 'B':
		bank = hardware.BankB
	default:
		return hardware.Channel{}, false
	}
	var bit int
	if _, err := fmt.Sscanf(s[1:], "%d", &bit); err != nil || bit < 0 || bit > 7 {
		return hardware.Channel{}, false
	}
	return hardware.Channel{Bank: bank, Bit: uint(bit)}, true
}

// buzzerPin adapts a periph gpio.PinOut to hardware.BuzzerPin.
type buzzerPin struct {
	pin gpio.PinOut
}

func (b buzzerPin) Out(level bool) error {
	return b.pin.Out(gpio.Level(level))
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "cabinetctl: %s.\n", err)
		os.Exit(1)
	}
}
