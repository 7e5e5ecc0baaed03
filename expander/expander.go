// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package expander drives the two MCP23S17-style 16-bit GPIO expanders that
// sit on the cabinet's serial register bus: one output-only expander
// carrying the relay (K1..K8) and transistor (T1..T8) banks, one input-only
// expander carrying the door/flood inputs and the DIP switch bank.
//
// Register access is a 3-byte transaction: [opcode, address, data]. Opcode
// 0x40 writes, 0x41 reads; the data byte of a read is returned in the third
// position of the reply. This mirrors periph's mmr.Dev8 register framing
// (one Tx per register access) applied to a point-to-point conn.Conn rather
// than an I2C/SPI-addressed bus.
package expander

import (
	"errors"
	"fmt"
	"sync"
)

// Register addresses, identical across both expanders.
type Register byte

const (
	IODIRA Register = 0x00
	IODIRB Register = 0x01
	GPPUA  Register = 0x0C
	GPPUB  Register = 0x0D
	IOCON  Register = 0x0A
	GPIOA  Register = 0x12
	GPIOB  Register = 0x13
	OLATA  Register = 0x14
	OLATB  Register = 0x15
)

const (
	opWrite byte = 0x40
	opRead  byte = 0x41
)

// Mode is the bus clock polarity/phase the driver probes at Open time.
// Reusing periph's SPI mode numbering (0..3) lets the probe loop in Open
// reuse well-known names instead of inventing a parallel enumeration.
type Mode int

const (
	Mode0 Mode = 0
	Mode1 Mode = 1
	Mode2 Mode = 2
	Mode3 Mode = 3
)

func (m Mode) String() string {
	switch m {
	case Mode0:
		return "Mode0"
	case Mode1:
		return "Mode1"
	case Mode2:
		return "Mode2"
	case Mode3:
		return "Mode3"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Conn is the minimal point-to-point transaction interface a physical bus
// transport must implement, identical in shape to periph's conn.Conn. A
// periph spi.Conn satisfies this directly (cmd/cabinetctl uses one). A Bus
// in simulation mode needs no Conn: it keeps its registers in memory.
type Conn interface {
	Tx(w, r []byte) error
}

// ErrBusUnavailable is returned (wrapped) by Open when no bus mode produced
// a device that echoes its own IOCON write; the Bus it returns is still
// valid and running in simulation mode.
var ErrBusUnavailable = errors.New("expander: bus unavailable, running in simulation mode")

// ErrBusTransient marks a single failed register transaction. The control
// loop does not retry it within the same cycle: it records the error in
// the runtime state, skips that commit and tries again on its next tick.
var ErrBusTransient = errors.New("expander: transient bus error")

// Role distinguishes the two expanders so Open can apply the correct
// IODIR/GPPU setup sequence.
type Role int

const (
	// RoleOutput is the output-only expander: IODIR=0x00, OLAT=0x00.
	RoleOutput Role = iota
	// RoleInput is the input-only expander: IODIR=0xFF, GPPU=0xFF.
	RoleInput
)

// Bus is a handle to one of the two GPIO expanders.
type Bus struct {
	role       Role
	conn       Conn
	mode       Mode
	simulating bool

	mu     sync.Mutex
	simReg map[Register]byte
}

// Open probes bus modes 0..3 in order: it writes IOCON=0x08 (HAEN,
// sequential) to the candidate connection and reads it back. The first
// mode whose read matches what was written is accepted. newConn is called
// once per candidate mode and must return a Conn talking to the bus at
// that mode (or an error if the mode itself cannot be configured).
//
// If no mode responds, Open falls back to an in-memory simulation: all
// reads return the last written value (0 if never written), writes are
// retained, and the rest of the system is unaware. ErrBusUnavailable is
// returned alongside the usable simulated Bus so the caller can log a
// persistent warning without treating startup as fatal.
func Open(role Role, newConn func(m Mode) (Conn, error)) (*Bus, error) {
	for m := Mode0; m <= Mode3; m++ {
		conn, err := newConn(m)
		if err != nil {
			continue
		}
		b := &Bus{role: role, conn: conn, mode: m}
		if err := b.writeReg(IOCON, 0x08); err != nil {
			continue
		}
		got, err := b.readReg(IOCON)
		if err != nil || got != 0x08 {
			continue
		}
		if err := b.setup(); err != nil {
			return nil, fmt.Errorf("expander: setup failed on %s: %w", m, err)
		}
		return b, nil
	}
	b := &Bus{
		role:       role,
		simulating: true,
		simReg:     make(map[Register]byte),
	}
	if err := b.setup(); err != nil {
		return nil, fmt.Errorf("expander: simulated setup failed: %w", err)
	}
	return b, ErrBusUnavailable
}

func (b *Bus) setup() error {
	if err := b.writeReg(IOCON, 0x08); err != nil {
		return err
	}
	switch b.role {
	case RoleOutput:
		if err := b.writeReg(IODIRA, 0x00); err != nil {
			return err
		}
		if err := b.writeReg(IODIRB, 0x00); err != nil {
			return err
		}
		if err := b.writeReg(OLATA, 0x00); err != nil {
			return err
		}
		return b.writeReg(OLATB, 0x00)
	case RoleInput:
		if err := b.writeReg(IODIRA, 0xFF); err != nil {
			return err
		}
		if err := b.writeReg(IODIRB, 0xFF); err != nil {
			return err
		}
		if err := b.writeReg(GPPUA, 0xFF); err != nil {
			return err
		}
		return b.writeReg(GPPUB, 0xFF)
	default:
		return fmt.Errorf("expander: unknown role %d", b.role)
	}
}

// Simulating reports whether the bus is running without responding
// hardware.
func (b *Bus) Simulating() bool {
	return b.simulating
}

// Mode returns the bus mode that was accepted at Open time (meaningless in
// simulation mode).
func (b *Bus) Mode() Mode {
	return b.mode
}

// ReadReg reads one register.
func (b *Bus) ReadReg(reg Register) (byte, error) {
	return b.readReg(reg)
}

// WriteReg writes one register.
func (b *Bus) WriteReg(reg Register, v byte) error {
	return b.writeReg(reg, v)
}

func (b *Bus) readReg(reg Register) (byte, error) {
	if b.simulating {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.simReg[reg], nil
	}
	w := []byte{opRead, byte(reg), 0x00}
	r := make([]byte, 3)
	if err := b.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("%w: read %#x: %v", ErrBusTransient, reg, err)
	}
	return r[2], nil
}

func (b *Bus) writeReg(reg Register, v byte) error {
	if b.simulating {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.simReg[reg] = v
		return nil
	}
	w := []byte{opWrite, byte(reg), v}
	if err := b.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("%w: write %#x=%#x: %v", ErrBusTransient, reg, v, err)
	}
	return nil
}
