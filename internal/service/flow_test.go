package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/events"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// Exercises the full journey: issue a link, scan it, attribute the
// first inbound message, open a ticket for it.
func TestScanToTicketFlow(t *testing.T) {
	t.Parallel()

	links := newFakeShortLinkRepo()
	scans := newFakeScanRepo()
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()

	issuer := NewShortLinkService(links, "https://sho.rt/r", logger)
	scanner := NewScanService(links, scans, dispatcher, logger)
	matcher := NewAttributionService(links, scans, dispatcher, logger)
	tf := newTicketFixture(newFakeProvider(domain.ProviderZendesk, "501"))

	link, err := issuer.Issue(context.Background(), IssueInput{
		TargetPhone: "+15551234567",
		Category:    "shoes",
		ProductID:   "SNEAK-9",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	scan, resolved, err := scanner.Record(context.Background(), link.ShortCode, ScanInput{
		ClientIP:  "203.0.113.9",
		UserAgent: "Mozilla/5.0",
		UTMSource: "qr",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resolved.ID != link.ID {
		t.Fatalf("resolved link %q, want %q", resolved.ID, link.ID)
	}

	// the user's first message carries the prefill back
	fields := ParsePrefill(link.PrefillText)
	matched, err := matcher.Match(context.Background(), fields["session"], "+15550001111")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if matched == nil || matched.ID != link.ID {
		t.Fatalf("match resolved %+v", matched)
	}
	if got := scans.get(scan.ID); !got.Matched {
		t.Fatal("scan should be matched after the first message")
	}

	result, err := tf.svc.Create(context.Background(), Requester{
		Identity: "+15550001111",
	}, "help, my sneakers fell apart", TicketMetadata{
		ProductTag: fields["product_id"],
		Channel:    "whatsapp",
		SessionID:  fields["session"],
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if result.TicketID == "" {
		t.Fatal("ticket id must be set")
	}
	if result.Provider != domain.ProviderZendesk {
		t.Fatalf("provider = %s", result.Provider)
	}
}

func TestRecordUnknownCodePersistsNothing(t *testing.T) {
	t.Parallel()

	links := newFakeShortLinkRepo()
	scans := newFakeScanRepo()
	scanner := NewScanService(links, scans, events.NewInMemoryDispatcher(), zap.NewNop())

	_, _, err := scanner.Record(context.Background(), "nope1234", ScanInput{ClientIP: "203.0.113.9"})
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(scans.scans) != 0 {
		t.Fatalf("scan rows = %d, want 0", len(scans.scans))
	}
}
