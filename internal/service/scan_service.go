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
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// ScanService logs redirect hits against short links. Inserts only, so
// concurrent scans of the same code never contend.
type ScanService struct {
	links      repository.ShortLinkRepository
	scans      repository.ScanRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewScanService constructs the service.
func NewScanService(links repository.ShortLinkRepository, scans repository.ScanRepository, dispatcher events.Dispatcher, logger *zap.Logger) *ScanService {
	return &ScanService{links: links, scans: scans, dispatcher: dispatcher, logger: logger}
}

// ScanInput captures request attributes of a redirect hit.
type ScanInput struct {
	ClientIP  string
	UserAgent string
	UTMSource string
	UTMMedium string
}

// Record persists a new unmatched scan for the short code and returns
// it together with the resolved link. Unknown codes fail with NotFound
// and persist nothing.
func (s *ScanService) Record(ctx context.Context, shortCode string, input ScanInput) (*domain.Scan, *domain.ShortLink, error) {
	link, err := s.links.GetByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("short link", map[string]any{"short_code": shortCode})
		}
		return nil, nil, err
	}

	scan := &domain.Scan{
		ShortLinkID: link.ID,
		ClientIP:    input.ClientIP,
		UserAgent:   input.UserAgent,
		UTMSource:   input.UTMSource,
		UTMMedium:   input.UTMMedium,
	}
	if err := s.scans.Create(ctx, scan); err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{
		Type:  events.EventScanRecorded,
		Actor: domain.SenderSystem,
		Payload: events.ScanRecordedPayload{
			ShortCode: link.ShortCode,
			ScanID:    scan.ID,
			UTMSource: scan.UTMSource,
			UTMMedium: scan.UTMMedium,
		},
	})
	return scan, link, nil
}

func (s *ScanService) publish(ctx context.Context, event events.Event) {
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
