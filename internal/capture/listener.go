package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/honeytrace/honeypot/internal/model"
)

const (
	DefaultMaxSessions = 512
	acceptRetryMin     = 5 * time.Millisecond
	acceptRetryMax     = time.Second
)

// Config is read once per Start. Port 0 binds an ephemeral port.
type Config struct {
	BindHost     string
	SSHPort      int
	TelnetPort   int
	SSHBanner    string
	TelnetBanner string

	// MaxSessions caps concurrently running sessions; connections over the
	// cap are recorded and closed. Zero means DefaultMaxSessions.
	MaxSessions int

	// IdleTimeout bounds each line read; zero disables it.
	IdleTimeout time.Duration
}

func (c Config) validate() error {
	if c.SSHPort < 0 || c.SSHPort > 65535 {
		return fmt.Errorf("invalid ssh port %d", c.SSHPort)
	}
	if c.TelnetPort < 0 || c.TelnetPort > 65535 {
		return fmt.Errorf("invalid telnet port %d", c.TelnetPort)
	}
	if c.SSHPort != 0 && c.SSHPort == c.TelnetPort {
		return fmt.Errorf("ssh and telnet ports must differ (both %d)", c.SSHPort)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("invalid max sessions %d", c.MaxSessions)
	}
	return nil
}

// Handle owns the sockets bound by one Start.
type Handle struct {
	cfg      Config
	ssh      net.Listener
	telnet   net.Listener
	closing  atomic.Bool
	loops    sync.WaitGroup
	closeErr error
	once     sync.Once
}

func (h *Handle) SSHAddr() net.Addr    { return h.ssh.Addr() }
func (h *Handle) TelnetAddr() net.Addr { return h.telnet.Addr() }
func (h *Handle) Config() Config       { return h.cfg }

func (h *Handle) close() error {
	h.once.Do(func() {
		h.closing.Store(true)
		h.closeErr = errors.Join(h.ssh.Close(), h.telnet.Close())
	})
	return h.closeErr
}

// Manager owns the two honeypot listeners and the sessions they spawn.
type Manager struct {
	recorder *Recorder
	emu      Emulator
	logger   *slog.Logger

	running atomic.Bool

	mu      sync.Mutex
	current *Handle
	sem     chan struct{}

	sessions sync.WaitGroup
	active   atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64
}

func NewManager(recorder *Recorder, emu Emulator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{recorder: recorder, emu: emu, logger: logger}
}

// IsRunning reports whether the listeners are accepting connections.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

func (m *Manager) ActiveSessions() int64 { return m.active.Load() }
func (m *Manager) AcceptedTotal() int64  { return m.accepted.Load() }
func (m *Manager) RejectedTotal() int64  { return m.rejected.Load() }

// Current returns the handle of the running listeners, or nil.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start binds both listeners and starts their accept loops. Binding is all
// or nothing: if either socket fails, neither stays open. Calling Start
// while running returns ErrAlreadyRunning; the running handle stays
// reachable through Current.
func (m *Manager) Start(cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return nil, ErrAlreadyRunning
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}

	sshAddr := net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.SSHPort))
	sshLn, err := net.Listen("tcp", sshAddr)
	if err != nil {
		return nil, newStartError(model.ProtocolSSH, sshAddr, err)
	}
	telnetAddr := net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.TelnetPort))
	telnetLn, err := net.Listen("tcp", telnetAddr)
	if err != nil {
		_ = sshLn.Close()
		return nil, newStartError(model.ProtocolTelnet, telnetAddr, err)
	}

	h := &Handle{cfg: cfg, ssh: sshLn, telnet: telnetLn}
	m.sem = make(chan struct{}, cfg.MaxSessions)
	m.current = h
	m.running.Store(true)

	m.logger.Info("honeypot listeners started",
		"ssh_addr", sshLn.Addr().String(),
		"telnet_addr", telnetLn.Addr().String(),
		"max_sessions", cfg.MaxSessions)

	h.loops.Add(2)
	go m.acceptLoop(h, h.ssh, model.ProtocolSSH, cfg.SSHBanner, m.sem)
	go m.acceptLoop(h, h.telnet, model.ProtocolTelnet, cfg.TelnetBanner, m.sem)
	return h, nil
}

// Stop closes the listeners of h and waits for its accept loops to exit.
// Sessions already running are left to finish. It reports false when the
// manager was not running h.
func (m *Manager) Stop(h *Handle) bool {
	m.mu.Lock()
	if h == nil || m.current != h || !m.running.Load() {
		m.mu.Unlock()
		return false
	}
	m.running.Store(false)
	m.current = nil
	m.mu.Unlock()

	if err := h.close(); err != nil {
		m.logger.Warn("close listeners", "error", err)
	}
	h.loops.Wait()
	m.logger.Info("honeypot listeners stopped", "active_sessions", m.active.Load())
	return true
}

// Wait blocks until every session has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) acceptLoop(h *Handle, ln net.Listener, proto model.Protocol, banner string, sem chan struct{}) {
	defer h.loops.Done()

	logger := m.logger.With("protocol", proto, "addr", ln.Addr().String())
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if h.closing.Load() || !m.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if delay == 0 {
				delay = acceptRetryMin
			} else {
				delay *= 2
			}
			if delay > acceptRetryMax {
				delay = acceptRetryMax
			}
			logger.Error("accept failed", "error", err, "retry_in", delay.String())
			time.Sleep(delay)
			continue
		}
		delay = 0
		m.accepted.Add(1)

		select {
		case sem <- struct{}{}:
			m.spawn(conn, proto, banner, h.cfg.IdleTimeout, sem)
		default:
			m.rejected.Add(1)
			m.reject(conn, proto, banner)
		}
	}
}

func (m *Manager) spawn(conn net.Conn, proto model.Protocol, banner string, idle time.Duration, sem chan struct{}) {
	m.sessions.Add(1)
	m.active.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("session panic", "protocol", proto, "remote", conn.RemoteAddr().String(), "panic", r)
			}
			m.active.Add(-1)
			<-sem
			m.sessions.Done()
		}()

		ctx := context.Background()
		ip, port := remoteIP(conn), localPort(conn)
		m.logger.Info("connection accepted", "protocol", proto, "remote", ip)

		rec := m.recorder.CreateRecord(ctx, ip, port, proto, banner)
		NewSession(conn, rec, m.emu, m.logger, SessionOptions{
			Protocol:    proto,
			Banner:      banner,
			IdleTimeout: idle,
		}).Run(ctx)
	}()
}

// reject records a connection that arrived while the session cap was
// reached, so it still yields a finalized record, and closes it.
func (m *Manager) reject(conn net.Conn, proto model.Protocol, banner string) {
	m.sessions.Add(1)
	go func() {
		defer m.sessions.Done()
		ctx := context.Background()
		ip := remoteIP(conn)
		m.logger.Warn("session limit reached, closing connection", "protocol", proto, "remote", ip)
		_ = conn.Close()
		rec := m.recorder.CreateRecord(ctx, ip, localPort(conn), proto, banner)
		rec.Finalize(ctx, model.CloseSessionLimit)
	}()
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func localPort(conn net.Conn) int {
	if tcp, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
