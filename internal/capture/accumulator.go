package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/honeytrace/honeypot/internal/model"
)

// Placeholders written by Finalize so that no persisted record is left
// without credentials.
const (
	PlaceholderUsername           = "connection_attempt"
	PlaceholderPasswordNoData     = "no_data"
	PlaceholderPasswordIncomplete = "incomplete_connection"
)

// RecordStore persists a full attack record snapshot. Implementations must
// be safe for concurrent use and assign rec.ID on first save.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *model.AttackRecord) error
}

type Notifier interface {
	Emit(ctx context.Context, n model.Notification) error
}

// Recorder creates write-through attack records and raises the
// notifications tied to their lifecycle.
type Recorder struct {
	store    RecordStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	saveFailures atomic.Int64
}

func NewRecorder(store RecordStore, notifier Notifier, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// SaveFailures counts persistence attempts that failed since start.
func (r *Recorder) SaveFailures() int64 {
	return r.saveFailures.Load()
}

// CreateRecord starts the record for a freshly accepted connection,
// persists it and emits the new-connection notification.
func (r *Recorder) CreateRecord(ctx context.Context, sourceAddress string, port int, proto model.Protocol, banner string) *Record {
	rec := &Record{
		recorder: r,
		rec: model.AttackRecord{
			SessionID:     uuid.New().String(),
			StartedAt:     r.now().UTC(),
			SourceAddress: sourceAddress,
			Port:          port,
			Protocol:      proto,
			Banner:        banner,
			Commands:      []model.CommandEntry{},
		},
	}
	rec.logger = r.logger.With("session_id", rec.rec.SessionID, "remote", sourceAddress, "protocol", proto)

	name := protocolName(proto)
	r.emit(ctx, rec.logger, model.NewAttackNotification(model.NotificationInfo,
		"New "+name+" Connection",
		"New "+name+" connection attempt detected",
		sourceAddress, proto, ""))

	rec.persistLocked(ctx)
	return rec
}

func (r *Recorder) emit(ctx context.Context, logger *slog.Logger, n model.Notification) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Emit(ctx, n); err != nil {
		logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}

// Record is the handle a session mutates. Every mutation persists the whole
// record before returning.
type Record struct {
	recorder *Recorder
	logger   *slog.Logger

	mu          sync.Mutex
	rec         model.AttackRecord
	usernameSet bool
	passwordSet bool
	finalized   bool
}

func (h *Record) SessionID() string {
	return h.rec.SessionID
}

// Snapshot returns a copy of the in-memory record.
func (h *Record) Snapshot() model.AttackRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rec.Clone()
}

// SetUsername records the username once. Later calls are ignored and
// report false.
func (h *Record) SetUsername(ctx context.Context, username string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.usernameSet || h.finalized {
		return false
	}
	h.usernameSet = true
	h.rec.Username = username
	h.logger.Info("username captured", "username", username)
	return h.persistLocked(ctx)
}

// SetPassword records the password once and raises the
// credentials-captured notification.
func (h *Record) SetPassword(ctx context.Context, password string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.passwordSet || h.finalized {
		return false
	}
	h.passwordSet = true
	h.rec.Password = password
	h.rec.Successful = false
	h.logger.Info("password captured", "username", h.rec.Username)
	ok := h.persistLocked(ctx)

	name := protocolName(h.rec.Protocol)
	h.recorder.emit(ctx, h.logger, model.NewAttackNotification(model.NotificationSuccess,
		name+" Credentials Captured",
		"New "+name+" credentials were captured and recorded",
		h.rec.SourceAddress, h.rec.Protocol, h.rec.Username))
	return ok
}

func (h *Record) AppendCommand(ctx context.Context, command string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		return false
	}
	h.rec.Commands = append(h.rec.Commands, model.CommandEntry{
		Timestamp: h.recorder.now().UTC(),
		Command:   command,
	})
	h.logger.Info("command", "command", command)
	return h.persistLocked(ctx)
}

// Finalize fills placeholder credentials where missing, stamps the end
// time and persists. Only the first call has any effect.
func (h *Record) Finalize(ctx context.Context, reason string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		return false
	}
	h.finalized = true

	switch {
	case !h.usernameSet && !h.passwordSet:
		h.rec.Username = PlaceholderUsername
		h.rec.Password = PlaceholderPasswordNoData
	case !h.passwordSet:
		h.rec.Password = PlaceholderPasswordIncomplete
	}
	h.rec.Successful = false
	h.rec.EndedAt = h.recorder.now().UTC()
	h.rec.CloseReason = reason

	h.logger.Info("session finalized",
		"reason", reason,
		"username", h.rec.Username,
		"commands", len(h.rec.Commands),
		"duration", h.rec.EndedAt.Sub(h.rec.StartedAt).String())
	return h.persistLocked(ctx)
}

func (h *Record) Finalized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finalized
}

// persistLocked writes the current snapshot. The caller holds h.mu or has
// not yet published h.
func (h *Record) persistLocked(ctx context.Context) bool {
	r := h.recorder
	if r.store == nil {
		return false
	}
	snap := h.rec.Clone()
	if err := r.store.SaveRecord(ctx, &snap); err != nil {
		r.saveFailures.Add(1)
		h.logger.Error("persist attack record failed", "error", err)

		name := protocolName(h.rec.Protocol)
		r.emit(ctx, h.logger, model.NewAttackNotification(model.NotificationError,
			"Error Saving "+name+" Log",
			fmt.Sprintf("Failed to save %s attack log: %v", name, err),
			h.rec.SourceAddress, h.rec.Protocol, ""))
		return false
	}
	if h.rec.ID == "" {
		h.rec.ID = snap.ID
	}
	return true
}

func protocolName(p model.Protocol) string {
	switch p {
	case model.ProtocolSSH:
		return "SSH"
	case model.ProtocolTelnet:
		return "Telnet"
	default:
		return strings.ToUpper(string(p))
	}
}
