package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
)

// SessionStore is the slice of the pending-action store the sweeper needs.
type SessionStore interface {
	SweepExpired() pending.SweepSummary
	Len() int
}

type Config struct {
	SweepInterval time.Duration
}

// Service evicts expired confirmation sessions in the background. A session
// that outlives its TTL without the caller confirming or cancelling it is
// abandoned, and the staged statement must not remain confirmable forever.
type Service struct {
	Store  SessionStore
	Config Config
	Logger *slog.Logger
	Clock  func() time.Time
}

type SweepReport struct {
	Removed         int   `json:"removed"`
	ExpiredPending  int   `json:"expired_pending"`
	RemainingStaged int   `json:"remaining_staged"`
	DurationMillis  int64 `json:"duration_ms"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := s.RunSweepOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "session sweep failed", slog.Any("error", err))
				}
				continue
			}
			if report.Removed > 0 && s.Logger != nil {
				s.Logger.InfoContext(ctx, "session sweep completed", slog.Any("report", report))
			}
		}
	}
}

func (s *Service) RunSweepOnce(ctx context.Context) (SweepReport, error) {
	s.ensureDefaults()
	if s.Store == nil {
		return SweepReport{}, fmt.Errorf("session store is required")
	}
	if err := ctx.Err(); err != nil {
		return SweepReport{}, err
	}

	start := s.Clock()
	summary := s.Store.SweepExpired()
	observability.ObserveSessionsExpired(summary.ExpiredPending)

	return SweepReport{
		Removed:         summary.Removed,
		ExpiredPending:  summary.ExpiredPending,
		RemainingStaged: s.Store.Len(),
		DurationMillis:  s.Clock().Sub(start).Milliseconds(),
	}, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.SweepInterval <= 0 {
		s.Config.SweepInterval = 5 * time.Minute
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}
