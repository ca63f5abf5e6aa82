package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the supervised process state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const outputBufferSize = 4096

// Config describes the subprocess and its restart policy.
type Config struct {
	// Name identifies the process in logs.
	Name string

	// Binary is the executable path; Args its command line.
	Binary string
	Args   []string

	// Env is appended to the inherited environment. WorkDir, if set,
	// overrides the working directory.
	Env     []string
	WorkDir string

	// RestartOnFailure restarts the process after an unexpected exit,
	// waiting RestartDelay between attempts. MaxRestartAttempts of 0
	// means unlimited.
	RestartOnFailure   bool
	RestartDelay       time.Duration
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnStop, if set, is called whenever the process exits. err is nil
	// for a requested stop.
	OnStop func(err error)
}

// Logger is the logging surface the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises one subprocess.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	stopRequested bool
	done          chan struct{}
}

// NewManager returns a manager for cfg. Zero durations get defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the subprocess and begins monitoring. It fails if the
// process is already running or cannot be spawned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("process %s already running", m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.spawn(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.monitor(ctx)
	return nil
}

func (m *Manager) spawn(ctx context.Context) error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Binary path comes from validated config

	// Own process group, so Stop can signal children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.mu.Unlock()

	go m.captureOutput("stdout", stdout)
	go m.captureOutput("stderr", stderr)

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)
	return nil
}

func (m *Manager) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.logger.Debug("process output",
				"name", m.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// monitor waits for exits and applies the restart policy.
func (m *Manager) monitor(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		m.mu.RUnlock()
		if cmd == nil {
			return
		}

		err := cmd.Wait()

		m.mu.Lock()
		stopRequested := m.stopRequested
		m.mu.Unlock()

		if stopRequested {
			m.setStopped(nil)
			return
		}

		m.logger.Warn("process exited unexpectedly",
			"name", m.config.Name,
			"error", err,
		)
		m.mu.Lock()
		m.lastError = err
		m.status = StatusFailed
		m.mu.Unlock()
		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		if !m.config.RestartOnFailure {
			return
		}

		m.mu.Lock()
		m.restartCount++
		attempt := m.restartCount
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached",
				"name", m.config.Name,
				"attempts", attempt,
			)
			return
		}

		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", m.config.RestartDelay,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.RestartDelay):
		}

		m.mu.RLock()
		stopRequested = m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			return
		}

		if err := m.spawn(ctx); err != nil {
			m.logger.Error("restart failed",
				"name", m.config.Name,
				"error", err,
			)
			// Loop continues and counts another attempt.
		}
	}
}

func (m *Manager) setStopped(err error) {
	m.logger.Info("process stopped", "name", m.config.Name)
	m.mu.Lock()
	m.status = StatusStopped
	m.mu.Unlock()
	if m.config.OnStop != nil {
		m.config.OnStop(err)
	}
}

// Stop terminates the subprocess: SIGTERM to the process group, then
// SIGKILL after GracefulTimeout. No-op when not running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning && m.status != StatusStarting {
		m.mu.Unlock()
		return nil
	}
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	// Negative pid signals the whole group created via Setpgid.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			m.logger.Warn("SIGTERM failed", "name", m.config.Name, "error", err)
		}
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful stop timed out, killing",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
		}
	}
	<-done
	return nil
}

// Status returns the current process state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning reports whether the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error from the most recent unexpected exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns how many restarts have been attempted.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}
