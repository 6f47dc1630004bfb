package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/events"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
)

// AttributionService links inbound messages back to the scan that
// produced them via the session token embedded in the prefill.
type AttributionService struct {
	links      repository.ShortLinkRepository
	scans      repository.ScanRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAttributionService constructs the service.
func NewAttributionService(links repository.ShortLinkRepository, scans repository.ScanRepository, dispatcher events.Dispatcher, logger *zap.Logger) *AttributionService {
	return &AttributionService{links: links, scans: scans, dispatcher: dispatcher, logger: logger}
}

// Match resolves the short link for a session token and flips the
// single most recent unmatched scan to matched. An unknown token
// returns (nil, nil). A known token with no unmatched scan returns the
// link without mutation: the identity is known, only scan-level
// attribution is degraded.
func (s *AttributionService) Match(ctx context.Context, sessionToken, identity string) (*domain.ShortLink, error) {
	if sessionToken == "" {
		return nil, nil
	}
	link, err := s.links.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	// The conditional update on matched=false makes the flip atomic.
	// Losing the race to a concurrent matcher means that scan is
	// taken; re-select once before settling for a degraded match.
	for attempt := 0; attempt < 2; attempt++ {
		scan, err := s.scans.LatestUnmatched(ctx, link.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.logger.Info("no unmatched scan for link",
					zap.String("short_code", link.ShortCode),
					zap.String("identity", identity))
				return link, nil
			}
			return nil, err
		}

		won, err := s.scans.MarkMatched(ctx, scan.ID, identity, time.Now())
		if err != nil {
			return nil, err
		}
		if won {
			s.publish(ctx, events.Event{
				Type:  events.EventScanMatched,
				Actor: identity,
				Payload: events.ScanMatchedPayload{
					ShortCode: link.ShortCode,
					ScanID:    scan.ID,
					Identity:  identity,
				},
			})
			return link, nil
		}
	}
	return link, nil
}

func (s *AttributionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
