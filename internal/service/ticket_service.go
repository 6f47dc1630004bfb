package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/events"
	"github.com/spec-kit/qr-attribution-service/internal/observability"
	"github.com/spec-kit/qr-attribution-service/internal/provider"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// TicketService routes support requests to the configured helpdesk
// provider and keeps the local system-of-record. Local writes are
// authoritative and must succeed; external mirroring is best-effort
// and may lag.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	provider   provider.Client
	retry      provider.RetryPolicy
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	Provider    provider.Client
	RetryPolicy provider.RetryPolicy
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Provider == nil {
		deps.Provider = provider.NewLocalOnly()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		provider:   deps.Provider,
		retry:      deps.RetryPolicy,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Requester identifies who is asking for support.
type Requester struct {
	Identity    string
	DisplayName string
	Email       string
	CRMID       string
}

// TicketMetadata carries optional creation context.
type TicketMetadata struct {
	ProductTag string
	Channel    string
	Subject    string
	SessionID  string
}

// TicketResult reports the outcome of ticket creation. Err carries the
// provider failure when the ticket fell back to the local store; a
// usable TicketID is present either way.
type TicketResult struct {
	TicketID   string
	ExternalID *string
	Provider   domain.TicketProvider
	Err        error
}

// localWriteTimeout bounds the detached context used for the
// authoritative local writes.
const localWriteTimeout = 5 * time.Second

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:      {domain.TicketStatusClaimed, domain.TicketStatusEscalated, domain.TicketStatusClosed},
	domain.TicketStatusClaimed:   {domain.TicketStatusEscalated, domain.TicketStatusClosed},
	domain.TicketStatusEscalated: {domain.TicketStatusClosed},
	domain.TicketStatusClosed:    {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Create opens a ticket with the configured provider, falling back to
// a local-only record when every external attempt fails. The local
// ticket and its initiating message are the durability guarantee:
// failures there propagate, provider failures do not.
func (s *TicketService) Create(ctx context.Context, requester Requester, message string, meta TicketMetadata) (TicketResult, error) {
	if strings.TrimSpace(requester.Identity) == "" {
		return TicketResult{}, apperrors.NewValidationError("requester identity required", nil)
	}
	if strings.TrimSpace(message) == "" {
		return TicketResult{}, apperrors.NewValidationError("message body required", nil)
	}

	channel := meta.Channel
	if channel == "" {
		channel = "whatsapp"
	}
	subject := meta.Subject
	if subject == "" {
		tag := meta.ProductTag
		if tag == "" {
			tag = "general"
		}
		subject = fmt.Sprintf("Support request from %s - %s", requester.Identity, tag)
	}

	var externalID string
	var provErr error
	if s.externalConfigured() {
		payload := provider.TicketPayload{
			Subject:        subject,
			Body:           message,
			RequesterName:  displayName(requester),
			RequesterPhone: requester.Identity,
			RequesterEmail: requester.Email,
			Tags:           buildTags(meta.ProductTag, channel),
			CRMID:          requester.CRMID,
		}
		s.logger.Info("creating external ticket", zap.String("provider", string(s.provider.Name())))
		provErr = provider.Retry(ctx, s.retry, func(ctx context.Context) error {
			id, err := s.provider.CreateTicket(ctx, payload)
			if err != nil {
				return err
			}
			externalID = id
			return nil
		})
		if provErr != nil {
			s.metrics.RecordProviderCall(string(s.provider.Name()), "create", "failed")
			s.logger.Warn("external ticket creation failed, falling back to local",
				zap.String("provider", string(s.provider.Name())),
				zap.Error(provErr))
		} else {
			s.metrics.RecordProviderCall(string(s.provider.Name()), "create", "ok")
		}
	}

	ticket := &domain.Ticket{
		Provider:          domain.ProviderLocal,
		Status:            domain.TicketStatusOpen,
		RequesterIdentity: requester.Identity,
		RequesterName:     displayName(requester),
		RequesterEmail:    optional(requester.Email),
		ProductTag:        optional(meta.ProductTag),
		CRMID:             optional(requester.CRMID),
		Channel:           channel,
	}
	if provErr == nil && externalID != "" {
		ref := domain.ExternalRef(s.provider.Name(), externalID)
		ticket.Provider = s.provider.Name()
		ticket.ExternalID = &ref
	}
	if provErr != nil {
		reason := provErr.Error()
		ticket.FailureReason = &reason
	}

	// The retry loop above may have consumed the caller's entire
	// deadline; the durable writes must not die with the request.
	localCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), localWriteTimeout)
	defer cancel()

	if err := s.tickets.Create(localCtx, ticket); err != nil {
		return TicketResult{}, err
	}

	msgMeta := map[string]any{"source": channel}
	if meta.SessionID != "" {
		msgMeta["session_id"] = meta.SessionID
	}
	if provErr != nil {
		msgMeta["error"] = provErr.Error()
	}
	if err := s.append(localCtx, ticket.ID, domain.SenderUser, message, msgMeta); err != nil {
		return TicketResult{}, err
	}

	s.publish(localCtx, events.Event{
		Type:  events.EventTicketCreated,
		Actor: requester.Identity,
		Payload: events.TicketCreatedPayload{
			TicketID:   ticket.ID,
			Provider:   ticket.Provider,
			ExternalID: ticket.ExternalID,
			Requester:  requester.Identity,
			Channel:    channel,
			Fallback:   provErr != nil,
		},
	})

	var externalPtr *string
	if provErr == nil && externalID != "" {
		externalPtr = &externalID
	}
	return TicketResult{
		TicketID:   ticket.ID,
		ExternalID: externalPtr,
		Provider:   ticket.Provider,
		Err:        provErr,
	}, nil
}

// Claim assigns a ticket to an agent. The local transition and system
// message are durable; the external private note is best-effort.
func (s *TicketService) Claim(ctx context.Context, ticketID, agentID, agentName string) error {
	if strings.TrimSpace(agentID) == "" {
		return apperrors.NewValidationError("agent_id required", nil)
	}
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, ticket, domain.TicketStatusClaimed, "claimed"); err != nil {
		return err
	}

	who := agentName
	if who == "" {
		who = agentID
	}
	note := fmt.Sprintf("Ticket claimed by %s", who)
	if err := s.append(ctx, ticket.ID, domain.SenderSystem, note, map[string]any{"agent_id": agentID}); err != nil {
		return err
	}

	s.mirror(ctx, ticket, "claim", func(ctx context.Context, externalTicketID string) error {
		return s.provider.AddPrivateNote(ctx, externalTicketID, note)
	})
	return nil
}

// AddNote appends an internal agent note, mirrored externally as a
// private comment when possible.
func (s *TicketService) AddNote(ctx context.Context, ticketID, agentID, note string) error {
	if strings.TrimSpace(agentID) == "" || strings.TrimSpace(note) == "" {
		return apperrors.NewValidationError("agent_id and note required", nil)
	}
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return err
	}

	if err := s.append(ctx, ticket.ID, domain.AgentSender(agentID), note, map[string]any{"internal": true}); err != nil {
		return err
	}

	s.mirror(ctx, ticket, "add_note", func(ctx context.Context, externalTicketID string) error {
		return s.provider.AddPrivateNote(ctx, externalTicketID, note)
	})
	return nil
}

// Transfer escalates a ticket toward another team.
func (s *TicketService) Transfer(ctx context.Context, ticketID, agentID, targetTeam, reason string) error {
	if strings.TrimSpace(agentID) == "" {
		return apperrors.NewValidationError("agent_id required", nil)
	}
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, ticket, domain.TicketStatusEscalated, "transferred"); err != nil {
		return err
	}

	team := targetTeam
	if team == "" {
		team = "team"
	}
	note := fmt.Sprintf("Transfer requested by %s to %s: %s", agentID, team, reason)
	if err := s.append(ctx, ticket.ID, domain.SenderSystem, note, map[string]any{"transfer": true}); err != nil {
		return err
	}

	s.mirror(ctx, ticket, "transfer", func(ctx context.Context, externalTicketID string) error {
		if err := s.provider.AddPrivateNote(ctx, externalTicketID, note); err != nil {
			return err
		}
		return s.provider.UpdateStatus(ctx, externalTicketID, domain.TicketStatusEscalated)
	})
	return nil
}

// Close moves a ticket to its terminal state. Closing an already
// closed ticket is not an error: the system message is still appended
// for audit.
func (s *TicketService) Close(ctx context.Context, ticketID string) error {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return err
	}

	if ticket.Status != domain.TicketStatusClosed {
		if err := s.transition(ctx, ticket, domain.TicketStatusClosed, "closed"); err != nil {
			return err
		}
	}

	if err := s.append(ctx, ticket.ID, domain.SenderSystem, "Ticket closed", map[string]any{}); err != nil {
		return err
	}

	s.mirror(ctx, ticket, "close", func(ctx context.Context, externalTicketID string) error {
		return s.provider.UpdateStatus(ctx, externalTicketID, domain.TicketStatusClosed)
	})
	return nil
}

// Get fetches a ticket by local id.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.get(ctx, ticketID)
}

// ListByRequester returns tickets for one requester identity.
func (s *TicketService) ListByRequester(ctx context.Context, identity string, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListByRequester(ctx, identity, limit, offset)
}

// FetchMessages merges local thread rows with externally stored
// comments, deduplicated by (sender, body, created_at). External fetch
// failures are silently omitted. The merged order is local rows first,
// then remaining external comments; it is not globally re-sorted by
// timestamp across sources.
func (s *TicketService) FetchMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	local, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	externalTicketID, ok := s.mirrorTarget(ticket)
	if !ok {
		return local, nil
	}

	comments, err := s.provider.GetComments(ctx, externalTicketID)
	if err != nil {
		s.logger.Warn("external comment fetch failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("provider", string(s.provider.Name())),
			zap.Error(err))
		return local, nil
	}

	seen := make(map[string]struct{}, len(local))
	for _, msg := range local {
		seen[messageKey(msg.Sender, msg.Body, msg.CreatedAt)] = struct{}{}
	}
	merged := local
	for _, c := range comments {
		key := messageKey(c.Author, c.Body, c.CreatedAt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, domain.TicketMessage{
			TicketID:  ticket.ID,
			Sender:    c.Author,
			Body:      c.Body,
			Metadata:  map[string]any{"external": true},
			CreatedAt: c.CreatedAt,
		})
	}
	return merged, nil
}

func (s *TicketService) get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) transition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, comment string) error {
	if !isValidTransition(ticket.Status, next) {
		return apperrors.NewConflict(
			fmt.Sprintf("cannot move ticket from %s to %s", ticket.Status, next),
			map[string]any{"ticket_id": ticket.ID})
	}
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, next); err != nil {
		return err
	}
	old := ticket.Status
	ticket.Status = next

	s.publish(ctx, events.Event{
		Type:  events.EventTicketStatusChanged,
		Actor: domain.SenderSystem,
		Payload: events.TicketStatusChangedPayload{
			TicketID:  ticket.ID,
			OldStatus: old,
			NewStatus: next,
			Comment:   comment,
		},
	})
	return nil
}

func (s *TicketService) append(ctx context.Context, ticketID, sender, body string, metadata map[string]any) error {
	msg := &domain.TicketMessage{
		TicketID: ticketID,
		Sender:   sender,
		Body:     body,
		Metadata: metadata,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:  events.EventTicketMessageAdded,
		Actor: sender,
		Payload: events.TicketMessageAddedPayload{
			TicketID:    ticketID,
			MessageID:   msg.ID,
			Sender:      sender,
			BodyPreview: stringPreview(body, 120),
		},
	})
	return nil
}

// mirrorTarget reports the provider-side ticket id when the ticket has
// an external copy owned by the active provider.
func (s *TicketService) mirrorTarget(ticket *domain.Ticket) (string, bool) {
	if ticket.ExternalID == nil {
		return "", false
	}
	if !s.externalConfigured() || ticket.Provider != s.provider.Name() {
		return "", false
	}
	return ticket.ExternalTicketID(), true
}

// mirror runs a best-effort external call. Failures are logged and
// never roll back the local mutation.
func (s *TicketService) mirror(ctx context.Context, ticket *domain.Ticket, operation string, fn func(ctx context.Context, externalTicketID string) error) {
	externalTicketID, ok := s.mirrorTarget(ticket)
	if !ok {
		return
	}
	if err := fn(ctx, externalTicketID); err != nil {
		s.metrics.RecordProviderCall(string(s.provider.Name()), operation, "failed")
		s.logger.Warn("external mirror failed",
			zap.String("operation", operation),
			zap.String("ticket_id", ticket.ID),
			zap.String("provider", string(s.provider.Name())),
			zap.Error(err))
		return
	}
	s.metrics.RecordProviderCall(string(s.provider.Name()), operation, "ok")
}

func (s *TicketService) externalConfigured() bool {
	return s.provider != nil && s.provider.Name() != domain.ProviderLocal
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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

func messageKey(sender, body string, createdAt time.Time) string {
	return fmt.Sprintf("%s|%s|%d", sender, body, createdAt.Unix())
}

func displayName(requester Requester) string {
	if requester.DisplayName != "" {
		return requester.DisplayName
	}
	return requester.Identity
}

func buildTags(productTag, channel string) []string {
	tags := make([]string, 0, 2)
	if productTag != "" {
		tags = append(tags, productTag)
	}
	if channel != "" {
		tags = append(tags, channel)
	}
	return tags
}

func optional(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}

// stringPreview truncates on rune boundaries so multi-byte text never
// ends up with a mangled trailing character.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
