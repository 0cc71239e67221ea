package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository persists audit events. Implementations must be append-only.
type Repository interface {
	Append(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter Filter) ([]Event, int64, error)
}

// Recorder assigns ids and per-request sequence numbers, then appends.
// A write failure is logged with the full event so the trail is never
// silently lost, but does not fail the request that produced it.
type Recorder struct {
	repo Repository
	log  zerolog.Logger

	mu        sync.Mutex
	sequences map[string]int
}

// NewRecorder creates a recorder backed by the given repository.
func NewRecorder(repo Repository, log zerolog.Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		log:       log.With().Str("component", "audit").Logger(),
		sequences: make(map[string]int),
	}
}

// Record appends one event, assigning id, timestamp, and the next sequence
// number for its request so ordering within a request's trail is preserved.
// When the counter was released (a plan held for approval resumes later), it
// is re-seeded from the stored trail so the sequence keeps climbing.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Tag == "" {
		event.Tag = TagNone
	}
	event.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	if _, ok := r.sequences[event.RequestID]; !ok {
		r.sequences[event.RequestID] = r.storedMaxSequence(ctx, event.RequestID)
	}
	r.sequences[event.RequestID]++
	event.Sequence = r.sequences[event.RequestID]
	r.mu.Unlock()

	if err := r.repo.Append(ctx, &event); err != nil {
		r.log.Error().Err(err).
			Str("request_id", event.RequestID).
			Str("event_type", string(event.Type)).
			Interface("detail", event.Detail).
			Msg("failed to append audit event")
	}
}

// storedMaxSequence reads the highest persisted sequence for a request.
// Called with the mutex held, only on the first event after a counter reset.
func (r *Recorder) storedMaxSequence(ctx context.Context, requestID string) int {
	events, _, err := r.repo.Query(ctx, Filter{RequestID: requestID})
	if err != nil {
		r.log.Warn().Err(err).Str("request_id", requestID).Msg("seeding audit sequence from store failed")
		return 0
	}
	max := 0
	for _, e := range events {
		if e.Sequence > max {
			max = e.Sequence
		}
	}
	return max
}

// CloseRequest releases the sequence counter once a request's trail is done.
func (r *Recorder) CloseRequest(requestID string) {
	r.mu.Lock()
	delete(r.sequences, requestID)
	r.mu.Unlock()
}

// Query exposes the read-only audit surface.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Event, int64, error) {
	return r.repo.Query(ctx, filter)
}
