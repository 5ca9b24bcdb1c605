package store

import (
	"context"
	"sync"

	"github.com/splunklabhq/splunklab/backend/services/types"
)

// SessionTier keeps records in process memory for the lifetime of the portal
// session. It survives database outages but not restarts.
type SessionTier struct {
	mu      sync.Mutex
	records map[types.UserEmail]Record
}

func NewSessionTier() *SessionTier {
	return &SessionTier{
		records: map[types.UserEmail]Record{},
	}
}

func (t *SessionTier) Name() string {
	return "session"
}

func (t *SessionTier) Load(ctx context.Context, userKey types.UserEmail) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[userKey]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (t *SessionTier) Save(ctx context.Context, userKey types.UserEmail, record Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[userKey] = record
	return nil
}

func (t *SessionTier) Clear(ctx context.Context, userKey types.UserEmail) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, userKey)
	return nil
}
