package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/casalprim/interfono/internal/infrastructure/config"
	"github.com/casalprim/interfono/internal/infrastructure/logging"
	"github.com/casalprim/interfono/internal/process"
)

// Manager starts and stops the video relay subprocess on demand.
// StartStream and StopStream are idempotent; presence edges may repeat.
type Manager struct {
	cfg    config.VideoConfig
	logger *logging.Logger

	mu     sync.Mutex
	proc   *process.Manager
	active bool
	closed bool
}

// New returns a stream manager. When video is disabled in configuration
// the manager still works but every operation is a no-op.
func New(cfg config.VideoConfig, logger *logging.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "stream"),
	}
}

// StartStream launches the relay if it is not already running.
func (m *Manager) StartStream(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("stream: manager closed")
	}
	if m.active {
		m.logger.Debug("stream already running")
		return nil
	}

	proc := process.NewManager(process.Config{
		Name:               "go2rtc",
		Binary:             m.cfg.Binary,
		Args:               m.cfg.Args,
		RestartOnFailure:   m.cfg.RestartOnFailure,
		RestartDelay:       m.cfg.RestartDelay,
		MaxRestartAttempts: m.cfg.MaxRestartAttempts,
		GracefulTimeout:    m.cfg.GracefulTimeout,
	})
	proc.SetLogger(m.logger)

	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	m.proc = proc
	m.active = true
	m.logger.Info("video stream started")
	return nil
}

// StopStream terminates the relay if it is running.
func (m *Manager) StopStream() error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		m.logger.Debug("stream already stopped")
		return nil
	}

	if err := m.proc.Stop(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	m.proc = nil
	m.active = false
	m.logger.Info("video stream stopped")
	return nil
}

// Active reports whether the relay is currently running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close stops the relay and refuses further starts.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.StopStream()
}
