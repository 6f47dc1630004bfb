package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

const (
	// shortCodeAttempts bounds regeneration on short_code collisions
	// before giving up with a capacity error.
	shortCodeAttempts = 5
	sessionTokenBytes = 16
)

// ShortLinkService mints short links with embedded session tokens.
type ShortLinkService struct {
	links   repository.ShortLinkRepository
	baseURL string
	logger  *zap.Logger
}

// NewShortLinkService constructs the service.
func NewShortLinkService(links repository.ShortLinkRepository, baseURL string, logger *zap.Logger) *ShortLinkService {
	return &ShortLinkService{links: links, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// IssueInput describes short link creation payload.
type IssueInput struct {
	TargetPhone string
	Category    string
	ProductID   string
	UTMSource   string
	UTMMedium   string
	Metadata    map[string]any
}

// Issue creates a new short link with a fresh session token and a
// deterministic prefill payload.
func (s *ShortLinkService) Issue(ctx context.Context, input IssueInput) (*domain.ShortLink, error) {
	if strings.TrimSpace(input.TargetPhone) == "" {
		return nil, apperrors.NewValidationError("target_phone required", nil)
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}
	prefill := BuildPrefill(PrefillFields{
		Category:  input.Category,
		ProductID: input.ProductID,
		UTMSource: input.UTMSource,
		UTMMedium: input.UTMMedium,
		Session:   token,
	})

	for attempt := 1; attempt <= shortCodeAttempts; attempt++ {
		link := &domain.ShortLink{
			ShortCode:    generateShortCode(),
			TargetPhone:  strings.TrimSpace(input.TargetPhone),
			PrefillText:  prefill,
			SessionToken: token,
			Metadata:     input.Metadata,
		}
		err := s.links.Create(ctx, link)
		if err == nil {
			s.logger.Info("short link issued",
				zap.String("short_code", link.ShortCode),
				zap.String("product_id", input.ProductID))
			return link, nil
		}
		if errors.Is(err, repository.ErrDuplicateShortCode) {
			s.logger.Warn("short code collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		return nil, err
	}
	return nil, apperrors.NewCapacityError(
		fmt.Sprintf("short code generation failed after %d attempts", shortCodeAttempts))
}

// Resolve fetches a short link by its code. Pure read.
func (s *ShortLinkService) Resolve(ctx context.Context, shortCode string) (*domain.ShortLink, error) {
	link, err := s.links.GetByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("short link", map[string]any{"short_code": shortCode})
		}
		return nil, err
	}
	return link, nil
}

// ShortURL renders the public redirect URL for a link.
func (s *ShortLinkService) ShortURL(link *domain.ShortLink) string {
	return s.baseURL + "/" + link.ShortCode
}

// WhatsAppURL renders the messaging deep link a scan redirects to.
func WhatsAppURL(link *domain.ShortLink) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s", link.TargetPhone, url.QueryEscape(link.PrefillText))
}

func generateShortCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
