package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/honeytrace/honeypot/internal/model"
)

// Wire literals. Changing any of these changes what intruders see.
const (
	SSHIdentification = "SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.5"
	LoginPrompt       = "login: "
	PasswordPrompt    = "Password: "
	WelcomeBanner     = "Welcome to Ubuntu 20.04.3 LTS (GNU/Linux 5.4.0-74-generic x86_64)"
	ShellPrompt       = "root@ubuntu-server:~# "
	LogoutLine        = "logout"

	lineEnding   = "\n"
	maxLineBytes = 8 * 1024
)

type State int

const (
	StateGreeting State = iota
	StateCredentialUsername
	StateCredentialPassword
	StateShellInteractive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "GREETING"
	case StateCredentialUsername:
		return "CREDENTIAL_USERNAME"
	case StateCredentialPassword:
		return "CREDENTIAL_PASSWORD"
	case StateShellInteractive:
		return "SHELL_INTERACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

type Emulator interface {
	Emulate(line string) (string, bool)
}

// Session drives the dialogue on one accepted connection. It is not safe
// for concurrent use; Run owns it until it returns.
type Session struct {
	conn        net.Conn
	proto       model.Protocol
	banner      string
	record      *Record
	emu         Emulator
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time

	scanner *bufio.Scanner
	state   State
	reason  string
}

type SessionOptions struct {
	Protocol    model.Protocol
	Banner      string
	IdleTimeout time.Duration
}

func NewSession(conn net.Conn, record *Record, emu Emulator, logger *slog.Logger, opts SessionOptions) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 512), maxLineBytes)
	return &Session{
		conn:        conn,
		proto:       opts.Protocol,
		banner:      opts.Banner,
		record:      record,
		emu:         emu,
		logger:      logger.With("session_id", record.SessionID(), "protocol", opts.Protocol),
		idleTimeout: opts.IdleTimeout,
		now:         time.Now,
		scanner:     sc,
		state:       StateGreeting,
	}
}

func (s *Session) State() State {
	return s.state
}

// Run plays the dialogue until the session reaches CLOSED. On return the
// record is finalized and the connection closed, whatever the exit path.
func (s *Session) Run(ctx context.Context) {
	defer s.close(ctx)

	if err := s.greet(); err != nil {
		s.fail(err)
		return
	}
	for s.state != StateClosed {
		line, err := s.readLine()
		if err != nil {
			s.fail(err)
			return
		}
		if err := s.handle(ctx, line); err != nil {
			s.fail(err)
			return
		}
	}
}

func (s *Session) greet() error {
	if err := s.writeLine(s.banner); err != nil {
		return err
	}
	if s.proto == model.ProtocolTelnet {
		if err := s.writeLine(LoginPrompt); err != nil {
			return err
		}
	}
	s.state = StateCredentialUsername
	return nil
}

func (s *Session) handle(ctx context.Context, raw string) error {
	s.logger.Debug("line", "state", s.state, "line", raw)

	if s.proto == model.ProtocolSSH && strings.Contains(raw, "SSH") {
		return s.writeLine(SSHIdentification)
	}
	line := strings.TrimSpace(raw)

	switch s.state {
	case StateCredentialUsername:
		if line == "" {
			return nil
		}
		s.record.SetUsername(ctx, line)
		s.state = StateCredentialPassword
		if s.proto == model.ProtocolTelnet {
			return s.writeLine(PasswordPrompt)
		}
		return nil

	case StateCredentialPassword:
		if line == "" {
			return nil
		}
		s.record.SetPassword(ctx, line)
		if s.proto == model.ProtocolSSH {
			s.closeWith(model.CloseCredentialsCaptured)
			return nil
		}
		s.state = StateShellInteractive
		return s.writeLines(
			WelcomeBanner,
			"Last login: "+s.now().UTC().Format("Mon Jan _2 15:04:05 2006"),
			ShellPrompt,
		)

	case StateShellInteractive:
		if line == "" {
			return s.writeLine(ShellPrompt)
		}
		s.record.AppendCommand(ctx, line)
		if isExitCommand(line) {
			err := s.writeLine(LogoutLine)
			s.closeWith(model.CloseExit)
			return err
		}
		if out, ok := s.emu.Emulate(line); ok {
			if err := s.writeLine(out); err != nil {
				return err
			}
		}
		return s.writeLine(ShellPrompt)
	}
	return nil
}

func (s *Session) readLine() (string, error) {
	if s.idleTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return "", err
		}
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *Session) writeLine(text string) error {
	if s.idleTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(s.conn, text+lineEnding)
	return err
}

func (s *Session) writeLines(lines ...string) error {
	for _, l := range lines {
		if err := s.writeLine(l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) closeWith(reason string) {
	if s.state == StateClosed {
		return
	}
	s.reason = reason
	s.state = StateClosed
}

func (s *Session) fail(err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Debug("peer closed connection", "state", s.state)
		s.closeWith(model.CloseEOF)
	case errors.As(err, &ne) && ne.Timeout():
		s.logger.Info("session idle timeout", "state", s.state)
		s.closeWith(model.CloseIdleTimeout)
	default:
		s.logger.Warn("session i/o error", "state", s.state, "error", err)
		s.closeWith(model.CloseIOError)
	}
}

func (s *Session) close(ctx context.Context) {
	if s.state != StateClosed {
		s.closeWith(model.CloseIOError)
	}
	s.record.Finalize(context.WithoutCancel(ctx), s.reason)
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("close connection", "error", err)
	}
}

func isExitCommand(line string) bool {
	fields := strings.Fields(line)
	if len(fields) > 1 && strings.EqualFold(fields[0], "sudo") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "exit", "logout":
		return true
	}
	return false
}
