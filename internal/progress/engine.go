package progress

import (
	"context"
	"log/slog"
	"time"
)

// UserDirectory resolves display names for certificate verification.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// EngineConfig holds dependencies for the progress engine.
type EngineConfig struct {
	Store       Store
	Users       UserDirectory          // optional; ids are shown when nil
	Events      EventLogger            // default NopEventLogger
	VerifyCache VerifyCache            // default no caching
	Now         func() time.Time       // default time.Now
	NewCode     func() (string, error) // certificate id generator, default NewCertificateCode
}

// Engine runs the learner state machine. Each exported operation checks the
// actor's capability first and then runs as one store transaction.
type Engine struct {
	store   Store
	users   UserDirectory
	events  EventLogger
	cache   VerifyCache
	now     func() time.Time
	newCode func() (string, error)
}

// NewEngine creates a new progress engine.
func NewEngine(cfg EngineConfig) *Engine {
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	cache := cfg.VerifyCache
	if cache == nil {
		cache = nopVerifyCache{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newCode := cfg.NewCode
	if newCode == nil {
		newCode = NewCertificateCode
	}
	return &Engine{
		store:   cfg.Store,
		users:   cfg.Users,
		events:  events,
		cache:   cache,
		now:     now,
		newCode: newCode,
	}
}

// outbox collects side effects that may only happen after commit.
type outbox struct {
	events  []Event
	revoked []string // certificate ids to mark revoked in the verify cache
}

func (o *outbox) emit(ev Event) {
	o.events = append(o.events, ev)
}

// run executes fn in a transaction and flushes the outbox on success.
func (e *Engine) run(ctx context.Context, fn func(tx Tx, out *outbox) error) error {
	var out *outbox
	err := e.store.InTx(ctx, func(tx Tx) error {
		out = &outbox{}
		return fn(tx, out)
	})
	if err != nil {
		return err
	}

	if len(out.revoked) > 0 {
		e.cache.Revoke(ctx, out.revoked...)
	}
	now := e.now()
	for _, ev := range out.events {
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		if err := e.events.LogEvent(ev); err != nil {
			slog.Warn("failed to log event", "type", ev.EventType, "error", err)
		}
	}
	return nil
}

// view executes a read-only fn in a transaction. fn must only use tx: on
// stores that serialize transactions, calling back into the store deadlocks.
func (e *Engine) view(ctx context.Context, fn func(tx Tx) error) error {
	return e.store.InTx(ctx, fn)
}

func (e *Engine) displayName(ctx context.Context, userID string) string {
	if e.users == nil {
		return userID
	}
	name, err := e.users.DisplayName(ctx, userID)
	if err != nil || name == "" {
		if err != nil {
			slog.Warn("failed to resolve user name", "user_id", userID, "error", err)
		}
		return userID
	}
	return name
}
