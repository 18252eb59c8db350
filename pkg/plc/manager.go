/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package plc owns the single MC-protocol session to the line
// controller. All wire operations reconnect on demand and are
// serialized under one lock, so the poll loop and request-handling
// callers never interleave on the socket.
package plc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/mcproto"
	"github.com/carverauto/scancell/pkg/models"
)

var (
	ErrNotConfigured = errors.New("controller host/port not configured")
	ErrDisconnected  = errors.New("controller disconnected")
)

// Transport is the protocol session held by the manager. *mcproto.Conn
// implements it; tests substitute a mock.
type Transport interface {
	ReadBits(device string, count int) ([]byte, error)
	WriteBits(device string, values []byte) error
	ReadSignedWords(device string, count int) ([]int32, error)
	WriteSignedWords(device string, values []int32) error
	Close() error
}

// DialFunc opens a new protocol session.
type DialFunc func(ctx context.Context, host string, port int, timeout time.Duration) (Transport, error)

func defaultDial(ctx context.Context, host string, port int, timeout time.Duration) (Transport, error) {
	return mcproto.Dial(ctx, host, port, timeout)
}

// Manager is the connection manager. Exactly one instance exists per
// process; the socket never leaves it. The wire mutex is held for the
// full duration of every exchange; the status snapshot lives under its
// own lock so Status never blocks behind a slow socket call.
type Manager struct {
	mu      sync.Mutex // serializes wire operations and guards conn/host/port
	host    string
	port    int
	conn    Transport
	timeout time.Duration
	dial    DialFunc
	logger  logger.Logger

	statusMu sync.RWMutex
	status   models.ConnectionStatus
}

// NewManager creates an unconfigured manager. A nil dial selects the
// real MC-protocol dialer; zero timeout selects the codec default.
func NewManager(dial DialFunc, timeout time.Duration, log logger.Logger) *Manager {
	if dial == nil {
		dial = defaultDial
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Manager{
		dial:    dial,
		timeout: timeout,
		logger:  log,
	}
}

// Configure updates the controller endpoint. A changed endpoint tears
// down any live session; reconnection happens lazily on the next call.
// Idempotent with identical arguments.
func (m *Manager) Configure(host string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.host == host && m.port == port {
		return
	}

	m.host = host
	m.port = port
	m.disconnectLocked()
	m.setStatus(func(s *models.ConnectionStatus) {
		s.Host = host
		s.Port = port
	})

	m.logger.Info().Str("host", host).Int("port", port).Msg("Controller endpoint configured")
}

// Connect establishes the session if one is not already held. It
// records the outcome in the status snapshot and never panics.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) bool {
	if m.conn != nil {
		return true
	}

	if m.host == "" || m.port == 0 {
		m.setStatus(func(s *models.ConnectionStatus) {
			s.Connected = false
			s.LastError = ErrNotConfigured.Error()
			s.LastChecked = time.Now()
		})

		return false
	}

	conn, err := m.dial(ctx, m.host, m.port, m.timeout)
	if err != nil {
		m.setStatus(func(s *models.ConnectionStatus) {
			s.Connected = false
			s.LastError = err.Error()
			s.LastChecked = time.Now()
		})
		m.logger.Warn().Err(err).Str("host", m.host).Int("port", m.port).Msg("Controller connection failed")

		return false
	}

	m.conn = conn
	m.setStatus(func(s *models.ConnectionStatus) {
		s.Connected = true
		s.LastError = ""
		s.LastChecked = time.Now()
	})
	m.logger.Info().Str("host", m.host).Int("port", m.port).Msg("Controller connected")

	return true
}

// Disconnect closes and releases the session if held. Close errors are
// swallowed; a fresh session is opened on the next wire call.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked()
}

func (m *Manager) disconnectLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}

	m.setStatus(func(s *models.ConnectionStatus) {
		s.Connected = false
	})
}

// failLocked records a wire error and forces a fresh session on the
// next call.
func (m *Manager) failLocked(err error) {
	m.disconnectLocked()
	m.setStatus(func(s *models.ConnectionStatus) {
		s.LastError = err.Error()
		s.LastChecked = time.Now()
	})
}

// ReadBits reads count consecutive bit devices.
func (m *Manager) ReadBits(ctx context.Context, device string, count int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connectLocked(ctx) {
		return nil, fmt.Errorf("%w: %s", ErrDisconnected, m.lastErr())
	}

	values, err := m.conn.ReadBits(device, count)
	if err != nil {
		m.failLocked(err)
		return nil, err
	}

	return values, nil
}

// WriteBits writes 0/1 values to consecutive bit devices.
func (m *Manager) WriteBits(ctx context.Context, device string, values []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connectLocked(ctx) {
		return fmt.Errorf("%w: %s", ErrDisconnected, m.lastErr())
	}

	if err := m.conn.WriteBits(device, values); err != nil {
		m.failLocked(err)
		return err
	}

	return nil
}

// ReadSignedWords reads count signed 32-bit register values.
func (m *Manager) ReadSignedWords(ctx context.Context, device string, count int) ([]int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connectLocked(ctx) {
		return nil, fmt.Errorf("%w: %s", ErrDisconnected, m.lastErr())
	}

	values, err := m.conn.ReadSignedWords(device, count)
	if err != nil {
		m.failLocked(err)
		return nil, err
	}

	return values, nil
}

// WriteSignedWords writes signed 32-bit register values.
func (m *Manager) WriteSignedWords(ctx context.Context, device string, values []int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connectLocked(ctx) {
		return fmt.Errorf("%w: %s", ErrDisconnected, m.lastErr())
	}

	if err := m.conn.WriteSignedWords(device, values); err != nil {
		m.failLocked(err)
		return err
	}

	return nil
}

// Status returns the connection snapshot without waiting on any wire
// operation in flight.
func (m *Manager) Status() models.ConnectionStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	return m.status
}

func (m *Manager) setStatus(update func(*models.ConnectionStatus)) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	update(&m.status)
}

func (m *Manager) lastErr() string {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	return m.status.LastError
}
