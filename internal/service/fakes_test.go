package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/provider"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
)

type fakeShortLinkRepo struct {
	mu          sync.Mutex
	byCode      map[string]*domain.ShortLink
	byToken     map[string]*domain.ShortLink
	nextID      int
	failCreates int
}

func newFakeShortLinkRepo() *fakeShortLinkRepo {
	return &fakeShortLinkRepo{
		byCode:  make(map[string]*domain.ShortLink),
		byToken: make(map[string]*domain.ShortLink),
	}
}

func (f *fakeShortLinkRepo) Create(_ context.Context, link *domain.ShortLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates > 0 {
		f.failCreates--
		return repository.ErrDuplicateShortCode
	}
	if _, exists := f.byCode[link.ShortCode]; exists {
		return repository.ErrDuplicateShortCode
	}
	f.nextID++
	link.ID = fmt.Sprintf("link-%d", f.nextID)
	link.CreatedAt = time.Now()
	stored := *link
	f.byCode[link.ShortCode] = &stored
	if link.SessionToken != "" {
		f.byToken[link.SessionToken] = &stored
	}
	return nil
}

func (f *fakeShortLinkRepo) GetByShortCode(_ context.Context, shortCode string) (*domain.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.byCode[shortCode]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *link
	return &copied, nil
}

func (f *fakeShortLinkRepo) GetBySessionToken(_ context.Context, sessionToken string) (*domain.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.byToken[sessionToken]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *link
	return &copied, nil
}

type fakeScanRepo struct {
	mu     sync.Mutex
	scans  []*domain.Scan
	nextID int64
}

func newFakeScanRepo() *fakeScanRepo {
	return &fakeScanRepo{}
}

func (f *fakeScanRepo) Create(_ context.Context, scan *domain.Scan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	scan.ID = f.nextID
	scan.CreatedAt = time.Now()
	stored := *scan
	f.scans = append(f.scans, &stored)
	return nil
}

func (f *fakeScanRepo) LatestUnmatched(_ context.Context, shortLinkID string) (*domain.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.scans) - 1; i >= 0; i-- {
		if f.scans[i].ShortLinkID == shortLinkID && !f.scans[i].Matched {
			copied := *f.scans[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeScanRepo) MarkMatched(_ context.Context, scanID int64, identity string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, scan := range f.scans {
		if scan.ID != scanID {
			continue
		}
		if scan.Matched {
			return false, nil
		}
		scan.Matched = true
		scan.MatchedAt = &at
		scan.MatchedIdentity = &identity
		return true, nil
	}
	return false, nil
}

func (f *fakeScanRepo) get(scanID int64) *domain.Scan {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, scan := range f.scans {
		if scan.ID == scanID {
			copied := *scan
			return &copied
		}
	}
	return nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	nextID  int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", f.nextID)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	f.tickets[ticket.ID] = &stored
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	ticket.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) ListByRequester(_ context.Context, identity string, limit, offset int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.RequesterIdentity == identity {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.TicketMessage
	nextID   int64
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *domain.TicketMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketMessage
	for _, msg := range f.messages {
		if msg.TicketID == ticketID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) forTicket(ticketID string) []domain.TicketMessage {
	out, _ := f.ListByTicket(context.Background(), ticketID)
	return out
}

// fakeProvider scripts external helpdesk behavior. createErrs are
// consumed one per CreateTicket call; once exhausted the call succeeds
// with externalID.
type fakeProvider struct {
	mu            sync.Mutex
	name          domain.TicketProvider
	externalID    string
	createErrs    []error
	createCalls   int
	notes         []string
	statusUpdates []domain.TicketStatus
	comments      []provider.Comment
	commentsErr   error
	noteErr       error
}

func newFakeProvider(name domain.TicketProvider, externalID string) *fakeProvider {
	return &fakeProvider{name: name, externalID: externalID}
}

func (f *fakeProvider) Name() domain.TicketProvider { return f.name }

func (f *fakeProvider) CreateTicket(_ context.Context, _ provider.TicketPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return "", err
	}
	return f.externalID, nil
}

func (f *fakeProvider) GetComments(_ context.Context, _ string) ([]provider.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments, nil
}

func (f *fakeProvider) AddPrivateNote(_ context.Context, _ string, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noteErr != nil {
		return f.noteErr
	}
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeProvider) UpdateStatus(_ context.Context, _ string, status domain.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func fastRetry() provider.RetryPolicy {
	return provider.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, CapDelay: 5 * time.Millisecond}
}
