package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/honeytrace/honeypot/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	seq     int
	err     error
	saves   int
	records map[string]model.AttackRecord
}

func newMemStore() *memStore {
	return &memStore{records: map[string]model.AttackRecord{}}
}

func (s *memStore) SaveRecord(_ context.Context, rec *model.AttackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	if rec.ID == "" {
		s.seq++
		rec.ID = fmt.Sprintf("rec-%d", s.seq)
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *memStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *memStore) all() []model.AttackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AttackRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out
}

func (s *memStore) finalized() []model.AttackRecord {
	var out []model.AttackRecord
	for _, r := range s.all() {
		if r.Finalized() {
			out = append(out, r)
		}
	}
	return out
}

type memNotifier struct {
	mu  sync.Mutex
	err error
	got []model.Notification
}

func (n *memNotifier) Emit(_ context.Context, note model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
	return n.err
}

func (n *memNotifier) ofType(t model.NotificationType) []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Notification
	for _, note := range n.got {
		if note.Type == t {
			out = append(out, note)
		}
	}
	return out
}

type echoEmulator struct{}

func (echoEmulator) Emulate(line string) (string, bool) {
	if line == "pwd" {
		return "/root", true
	}
	if line == "cd" {
		return "", false
	}
	return "bash: " + line + ": command not found", true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// peer reads the server side's output line by line.
type peer struct {
	conn  net.Conn
	lines chan string
}

func newPeer(conn net.Conn) *peer {
	p := &peer{conn: conn, lines: make(chan string, 64)}
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()
	return p
}

func (p *peer) send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(p.conn, line+"\n"); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

// expect consumes output until a line equal to want arrives.
func (p *peer) expect(t *testing.T, want string) []string {
	t.Helper()
	var seen []string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				t.Fatalf("connection closed before %q; saw %q", want, seen)
			}
			seen = append(seen, line)
			if line == want {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q; saw %q", want, seen)
		}
	}
}

// expectClosed drains output until the server closes the connection.
func (p *peer) expectClosed(t *testing.T) []string {
	t.Helper()
	var seen []string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return seen
			}
			seen = append(seen, line)
		case <-timeout:
			t.Fatalf("connection still open; saw %q", seen)
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errStoreDown = errors.New("store down")
