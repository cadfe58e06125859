package model

import (
	"context"
	"time"

	"github.com/roach88/recordkit/internal/entity"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Timestamp fills created and modified columns on save.
type Timestamp struct {
	BaseCallbacks

	Clock    Clock
	Created  string
	Modified string
}

// NewTimestamp returns a Timestamp using the "created" and "modified"
// columns. A nil clock uses the system clock in UTC.
func NewTimestamp(clock Clock) *Timestamp {
	if clock == nil {
		clock = systemClock{}
	}
	return &Timestamp{Clock: clock, Created: "created", Modified: "modified"}
}

// Name implements Extension.
func (t *Timestamp) Name() string { return "Timestamp" }

// BeforeSave sets created on new entities and modified on every save,
// unless the caller set the value explicitly. Columns missing from the
// schema are left alone.
func (t *Timestamp) BeforeSave(ctx context.Context, m *Model, e *entity.Entity) bool {
	now := t.Clock.Now()
	if e.IsNew() && t.Created != "" && !e.Has(t.Created) && m.HasField(ctx, t.Created) {
		e.Set(t.Created, now)
	}
	if t.Modified != "" && !e.IsDirty(t.Modified) && m.HasField(ctx, t.Modified) {
		e.Set(t.Modified, now)
	}
	return true
}
