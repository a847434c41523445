package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pairchat/internal/pkg/logx"
)

// Service marks users online or offline and answers status lookups.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	logger zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service whose online marks stay fresh for ttl.
func NewService(store Store, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logx.Component("Presence"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the freshness window applied to online marks.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// MarkOnline records identity as online until now+TTL.
func (s *Service) MarkOnline(ctx context.Context, identity string) Status {
	return s.mark(ctx, identity, StatusOnline)
}

// MarkOffline records identity as offline.
func (s *Service) MarkOffline(ctx context.Context, identity string) Status {
	return s.mark(ctx, identity, StatusOffline)
}

func (s *Service) mark(ctx context.Context, identity string, status Status) Status {
	rec := Record{
		Identity:  identity,
		Status:    status,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.store.Set(ctx, rec); err != nil {
		s.logger.Error().Err(err).
			Str("username", identity).
			Str("status", string(status)).
			Msg("Failed to write presence.")
		return StatusUnknown
	}

	return status
}

// GetStatus returns the current status of identity. A user never seen is offline.
func (s *Service) GetStatus(ctx context.Context, identity string) Status {
	rec, ok, err := s.store.Get(ctx, identity)
	if err != nil {
		s.logger.Error().Err(err).Str("username", identity).Msg("Failed to read presence.")
		return StatusUnknown
	}
	if !ok {
		return StatusOffline
	}

	return rec.StatusAt(s.now())
}

// GetAllStatuses returns a status for every identity using one store lookup.
// On store failure every identity maps to StatusUnknown.
func (s *Service) GetAllStatuses(ctx context.Context, identities []string) map[string]Status {
	out := make(map[string]Status, len(identities))

	records, err := s.store.GetMany(ctx, identities)
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(identities)).Msg("Failed to read presence batch.")
		for _, id := range identities {
			out[id] = StatusUnknown
		}
		return out
	}

	now := s.now()
	for _, id := range identities {
		rec, ok := records[id]
		if !ok {
			out[id] = StatusOffline
			continue
		}
		out[id] = rec.StatusAt(now)
	}

	return out
}
