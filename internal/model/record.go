package model

import (
	"strings"
	"time"
)

type Protocol string

const (
	ProtocolSSH    Protocol = "SSH"
	ProtocolTelnet Protocol = "TELNET"
)

func ParseProtocol(s string) (Protocol, bool) {
	switch Protocol(strings.ToUpper(strings.TrimSpace(s))) {
	case ProtocolSSH:
		return ProtocolSSH, true
	case ProtocolTelnet:
		return ProtocolTelnet, true
	default:
		return "", false
	}
}

// Close reasons recorded on a finalized AttackRecord.
const (
	CloseEOF                 = "eof"
	CloseExit                = "exit"
	CloseIOError             = "io_error"
	CloseIdleTimeout         = "idle_timeout"
	CloseSessionLimit        = "session_limit"
	CloseCredentialsCaptured = "credentials_captured"
)

type CommandEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
}

// AttackRecord is the capture of one accepted connection. Commands is
// append-only and keeps the order in which lines were received.
type AttackRecord struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at,omitempty"`
	SourceAddress string         `json:"source_address"`
	Port          int            `json:"port"`
	Protocol      Protocol       `json:"protocol"`
	Username      string         `json:"username,omitempty"`
	Password      string         `json:"password,omitempty"`
	Banner        string         `json:"banner"`
	Commands      []CommandEntry `json:"commands"`
	Successful    bool           `json:"successful"`
	CloseReason   string         `json:"close_reason,omitempty"`
}

func (r AttackRecord) Clone() AttackRecord {
	out := r
	if r.Commands != nil {
		out.Commands = make([]CommandEntry, len(r.Commands))
		copy(out.Commands, r.Commands)
	}
	return out
}

func (r AttackRecord) Finalized() bool {
	return !r.EndedAt.IsZero()
}

func (r AttackRecord) CommandLines() []string {
	out := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		out = append(out, c.Command)
	}
	return out
}
