// Package lifecycle exposes start, stop, restart and status over the
// capture listeners, with idempotent semantics for the control surface.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/honeytrace/honeypot/internal/capture"
	"github.com/honeytrace/honeypot/internal/model"
	"github.com/honeytrace/honeypot/internal/state"
)

const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

type Listener interface {
	Start(cfg capture.Config) (*capture.Handle, error)
	Stop(h *capture.Handle) bool
	IsRunning() bool
	ActiveSessions() int64
	AcceptedTotal() int64
}

type RecordCounter interface {
	CountRecords(ctx context.Context) (int64, error)
}

type Options struct {
	Notifier capture.Notifier
	History  *state.Manager
	Records  RecordCounter
	Logger   *slog.Logger
}

// Result is the outcome of a lifecycle operation. Status is "success" or
// "warning"; a warning means the call was a no-op.
type Result struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ServiceStatus struct {
	Active      bool   `json:"active"`
	Port        int    `json:"port"`
	Description string `json:"description"`
}

type Status struct {
	Status         string                   `json:"status"`
	Running        bool                     `json:"running"`
	Message        string                   `json:"message"`
	Services       map[string]ServiceStatus `json:"services"`
	ActiveSessions int64                    `json:"active_sessions"`
	AcceptedTotal  int64                    `json:"accepted_total"`
	Timestamp      time.Time                `json:"timestamp"`
}

type HoneypotHealth struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	LastStarted time.Time `json:"last_started,omitempty"`
	LastStopped time.Time `json:"last_stopped,omitempty"`
	StartCount  int       `json:"start_count"`
	LastError   string    `json:"last_error,omitempty"`
}

type Health struct {
	Status       string         `json:"status"`
	Honeypot     HoneypotHealth `json:"honeypot"`
	RecordsTotal int64          `json:"records_total"`
	RecordsError string         `json:"records_error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Controller serialises lifecycle operations on one Listener.
type Controller struct {
	listener Listener
	cfg      capture.Config
	notifier capture.Notifier
	history  *state.Manager
	records  RecordCounter
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	handle    *capture.Handle
	startedAt time.Time
}

func New(listener Listener, cfg capture.Config, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		listener: listener,
		cfg:      cfg,
		notifier: opts.Notifier,
		history:  opts.History,
		records:  opts.Records,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Controller) Start(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

func (c *Controller) Stop(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx)
}

// Restart stops the listeners if running and starts them again.
func (c *Controller) Restart(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("restarting honeypot")
	if c.listener.IsRunning() {
		c.stopLocked(ctx)
	}
	res, err := c.startLocked(ctx)
	if err != nil {
		return Result{}, err
	}
	res.Message = "Honeypot restarted successfully"
	return res, nil
}

func (c *Controller) startLocked(ctx context.Context) (Result, error) {
	if c.listener.IsRunning() {
		c.logger.Warn("start requested but honeypot is already running")
		return c.result(StatusWarning, "Honeypot is already running"), nil
	}

	h, err := c.listener.Start(c.cfg)
	if errors.Is(err, capture.ErrAlreadyRunning) {
		c.logger.Warn("start requested but honeypot is already running")
		return c.result(StatusWarning, "Honeypot is already running"), nil
	}
	if err != nil {
		c.logger.Error("honeypot start failed", "error", err)
		if c.history != nil {
			c.history.MarkStartFailed(err)
			c.saveHistory()
		}
		c.emit(ctx, model.NewSystemNotification(model.NotificationError, "Honeypot Start Failed", err.Error()))
		return Result{}, err
	}

	c.handle = h
	c.startedAt = c.now()
	if c.history != nil {
		c.history.MarkStarted(c.startedAt)
		c.saveHistory()
	}
	c.emit(ctx, model.NewSystemNotification(model.NotificationInfo, "Honeypot Started", "SSH/Telnet honeypot started successfully"))
	return c.result(StatusSuccess, "Honeypot started successfully"), nil
}

func (c *Controller) stopLocked(ctx context.Context) Result {
	if !c.listener.IsRunning() {
		c.logger.Warn("stop requested but honeypot is already stopped")
		return c.result(StatusWarning, "Honeypot is already stopped")
	}

	c.listener.Stop(c.handle)
	c.handle = nil
	c.startedAt = time.Time{}
	if c.history != nil {
		c.history.MarkStopped(c.now())
		c.saveHistory()
	}
	c.emit(ctx, model.NewSystemNotification(model.NotificationInfo, "Honeypot Stopped", "SSH/Telnet honeypot was stopped successfully"))
	return c.result(StatusSuccess, "Honeypot stopped successfully")
}

// Status reads the listener's running flag on every call.
func (c *Controller) Status() Status {
	running := c.listener.IsRunning()

	c.mu.Lock()
	sshPort, telnetPort := c.cfg.SSHPort, c.cfg.TelnetPort
	if running && c.handle != nil {
		sshPort = addrPort(c.handle.SSHAddr(), sshPort)
		telnetPort = addrPort(c.handle.TelnetAddr(), telnetPort)
	}
	c.mu.Unlock()

	st := Status{
		Status:  "STOPPED",
		Running: running,
		Message: "Honeypot is stopped",
		Services: map[string]ServiceStatus{
			"ssh":    {Active: running, Port: sshPort, Description: "SSH Honeypot Service"},
			"telnet": {Active: running, Port: telnetPort, Description: "Telnet Honeypot Service"},
		},
		ActiveSessions: c.listener.ActiveSessions(),
		AcceptedTotal:  c.listener.AcceptedTotal(),
		Timestamp:      c.now().UTC(),
	}
	if running {
		st.Status = "RUNNING"
		st.Message = "Honeypot is active and capturing connections"
	}
	return st
}

func (c *Controller) Health(ctx context.Context) Health {
	running := c.listener.IsRunning()

	c.mu.Lock()
	startedAt := c.startedAt
	c.mu.Unlock()

	h := Health{
		Status:    "DOWN",
		Honeypot:  HoneypotHealth{Status: "INACTIVE", Uptime: "0s"},
		Timestamp: c.now().UTC(),
	}
	if running {
		h.Status = "UP"
		h.Honeypot.Status = "ACTIVE"
		if !startedAt.IsZero() {
			h.Honeypot.Uptime = c.now().Sub(startedAt).Truncate(time.Second).String()
		}
	}
	if c.history != nil {
		hist := c.history.Get()
		h.Honeypot.LastStarted = hist.LastStartedAt
		h.Honeypot.LastStopped = hist.LastStoppedAt
		h.Honeypot.StartCount = hist.StartCount
		h.Honeypot.LastError = hist.LastStartError
	}
	if c.records != nil {
		n, err := c.records.CountRecords(ctx)
		if err != nil {
			h.RecordsError = err.Error()
		} else {
			h.RecordsTotal = n
		}
	}
	return h
}

func (c *Controller) result(status, msg string) Result {
	return Result{Status: status, Message: msg, Timestamp: c.now().UTC()}
}

func (c *Controller) emit(ctx context.Context, n model.Notification) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Emit(ctx, n); err != nil {
		c.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}

func (c *Controller) saveHistory() {
	if err := c.history.Save(); err != nil {
		c.logger.Warn("state save failed", "error", err)
	}
}

func addrPort(addr net.Addr, fallback int) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return fallback
}
