package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/followup"
	"github.com/wolfman30/solarbill-ai-platform/internal/leads"
	"github.com/wolfman30/solarbill-ai-platform/internal/llm"
	"github.com/wolfman30/solarbill-ai-platform/internal/location"
	"github.com/wolfman30/solarbill-ai-platform/internal/media"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/solarbill-ai-platform/internal/race"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// Idempotency scopes claimed by the pipeline.
const (
	InboundScope   = "inbound"
	QualifiedScope = "qualified"
)

const leadSource = "chat"

// Config wires a Processor. Contexts, Leads and Sender are required.
type Config struct {
	Contexts conversation.Store
	Leads    leads.Repository
	// Finder reads the lead before the turn; defaults to Leads.
	Finder      leads.Finder
	Sender      messaging.Sender
	Media       messaging.MediaFetcher
	Vision      llm.VisionReader
	Archive     *media.Archive
	LLM         llm.Client
	Followup    *followup.Dispatcher
	Processed   events.Processed
	Publisher   events.Publisher
	Transcripts *conversation.TranscriptStore
	Analyzer    *Analyzer
	Events      *conversation.EventLogger
	Messaging   *metrics.MessagingMetrics
	LeadMetrics *metrics.LeadMetrics
	Logger      *logging.Logger
	Now         func() time.Time
}

// Outcome summarizes one processed inbound message.
type Outcome struct {
	LeadID         string
	Duplicate      bool
	Intent         location.Intent
	Location       *location.Location
	Analysis       *Analysis
	Context        *conversation.Context
	Reply          string
	ReplySource    string
	RaceID         race.ID
	NewlyQualified bool
}

// Processor runs the inbound pipeline for one chat message at a time. It is
// safe for concurrent use; per-lead ordering comes from the context store.
type Processor struct {
	contexts    conversation.Store
	leads       leads.Repository
	finder      leads.Finder
	sender      messaging.Sender
	media       messaging.MediaFetcher
	vision      llm.VisionReader
	archive     *media.Archive
	llm         llm.Client
	followup    *followup.Dispatcher
	processed   events.Processed
	publisher   events.Publisher
	transcripts *conversation.TranscriptStore
	analyzer    *Analyzer
	events      *conversation.EventLogger
	msgMetrics  *metrics.MessagingMetrics
	leadMetrics *metrics.LeadMetrics
	logger      *logging.Logger
	now         func() time.Time
}

func NewProcessor(cfg Config) *Processor {
	if cfg.Contexts == nil {
		panic("intake: context store cannot be nil")
	}
	if cfg.Leads == nil {
		panic("intake: leads repository cannot be nil")
	}
	if cfg.Sender == nil {
		panic("intake: sender cannot be nil")
	}
	if cfg.Finder == nil {
		cfg.Finder = cfg.Leads
	}
	if cfg.Processed == nil {
		cfg.Processed = events.NewMemoryProcessedStore()
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = NewAnalyzer(nil, nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Events == nil {
		cfg.Events = conversation.NewEventLogger(cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Processor{
		contexts:    cfg.Contexts,
		leads:       cfg.Leads,
		finder:      cfg.Finder,
		sender:      cfg.Sender,
		media:       cfg.Media,
		vision:      cfg.Vision,
		archive:     cfg.Archive,
		llm:         cfg.LLM,
		followup:    cfg.Followup,
		processed:   cfg.Processed,
		publisher:   cfg.Publisher,
		transcripts: cfg.Transcripts,
		analyzer:    cfg.Analyzer,
		events:      cfg.Events,
		msgMetrics:  cfg.Messaging,
		leadMetrics: cfg.LeadMetrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Handle processes one inbound message. A redelivered message id returns an
// Outcome with Duplicate set and no side effects.
func (p *Processor) Handle(ctx context.Context, evt InboundEvent) (*Outcome, error) {
	started := p.now()
	kind := evt.Kind()

	leadID, err := messaging.NormalizePhone(evt.From)
	if err != nil {
		p.msgMetrics.ObserveInbound(kind, "invalid")
		return nil, fmt.Errorf("intake: sender phone: %w", err)
	}
	out := &Outcome{LeadID: leadID}

	if id := strings.TrimSpace(evt.MessageID); id != "" {
		err := events.Claim(ctx, p.processed, InboundScope, id)
		if errors.Is(err, events.ErrAlreadyProcessed) {
			p.logger.Info("duplicate inbound message skipped", "message_id", id, "lead_id", leadID)
			p.msgMetrics.ObserveInbound(kind, "duplicate")
			out.Duplicate = true
			return out, nil
		}
		if err != nil {
			p.msgMetrics.ObserveInbound(kind, "error")
			return nil, fmt.Errorf("intake: claim inbound %s: %w", id, err)
		}
	}

	if p.followup != nil {
		if n := p.followup.SignalReply(ctx, leadID); n > 0 {
			p.logger.Debug("pending follow-up resolved by reply", "lead_id", leadID, "races", n)
		}
	}
	p.events.InboundReceived(ctx, leadID, kind, evt.Body)
	p.appendTranscript(ctx, conversation.TranscriptMessage{
		LeadID:    leadID,
		Direction: conversation.DirectionInbound,
		Kind:      kind,
		Body:      evt.Body,
		MediaURL:  evt.MediaRef,
		CreatedAt: evt.ReceivedAt,
	})

	out.Intent = location.DetectIntent(evt.Body)

	billText, bill := p.readMedia(ctx, leadID, evt)
	out.Analysis = p.analyze(ctx, leadID, evt.Body, billText)

	if loc, ok := location.Extract(evt.Body); ok {
		out.Location = &loc
	} else if billText != "" {
		if loc, ok := location.Extract(billText); ok {
			out.Location = &loc
		}
	}

	convCtx, err := p.contexts.Upsert(ctx, leadID, p.partialFor(out))
	if err != nil {
		p.events.ErrorOccurred(ctx, leadID, "context_upsert", err)
		p.msgMetrics.ObserveInbound(kind, "error")
		return nil, fmt.Errorf("intake: upsert context: %w", err)
	}
	out.Context = convCtx
	if out.Location != nil && convCtx.City == out.Location.City {
		p.events.LocationDetected(ctx, leadID, convCtx.City, convCtx.State)
	}

	if bill != nil && p.archive.Enabled() {
		p.archiveBill(ctx, *bill, out.Analysis)
	}

	newly, err := p.recordLead(ctx, leadID, evt, convCtx, out.Analysis)
	if err != nil {
		p.events.ErrorOccurred(ctx, leadID, "lead_upsert", err)
		p.msgMetrics.ObserveInbound(kind, "error")
		return nil, err
	}
	out.NewlyQualified = newly

	if err := p.reply(ctx, evt, out); err != nil {
		p.msgMetrics.ObserveInbound(kind, "error")
		return out, err
	}

	p.msgMetrics.ObserveInbound(kind, "processed")
	p.msgMetrics.ObserveInboundLatency(kind, p.now().Sub(started).Seconds())
	return out, nil
}

// readMedia downloads an attachment and reads its text. Failures degrade to a
// text-only turn.
func (p *Processor) readMedia(ctx context.Context, leadID string, evt InboundEvent) (string, *media.Bill) {
	if strings.TrimSpace(evt.MediaRef) == "" || p.media == nil {
		return "", nil
	}
	att, err := p.media.FetchMedia(ctx, evt.MediaRef)
	if err != nil {
		p.events.ErrorOccurred(ctx, leadID, "media_fetch", err)
		return "", nil
	}
	contentType := att.ContentType
	if contentType == "" {
		contentType = evt.MediaType
	}
	bill := &media.Bill{
		LeadPhone:   leadID,
		MessageID:   evt.MessageID,
		Data:        att.Data,
		ContentType: contentType,
		ReceivedAt:  evt.ReceivedAt,
	}
	if p.vision == nil {
		p.logger.Warn("bill attachment received without a vision reader", "lead_id", leadID)
		return "", bill
	}
	text, err := p.vision.ReadText(ctx, att.Data, contentType)
	if err != nil {
		p.events.ErrorOccurred(ctx, leadID, "vision_read", err)
		return "", bill
	}
	bill.OCRText = text
	return text, bill
}

// analyze extracts from the bill text when there is one. A plain chat message
// only counts as a bill when it carries an amount.
func (p *Processor) analyze(ctx context.Context, leadID, body, billText string) *Analysis {
	source := billText
	if strings.TrimSpace(source) == "" {
		source = body
	}
	if strings.TrimSpace(source) == "" {
		return nil
	}
	a, err := p.analyzer.Analyze(source)
	if err != nil {
		p.events.ErrorOccurred(ctx, leadID, "extract", err)
		return nil
	}
	if billText == "" {
		if _, ok := a.Fields.TotalAmount(); !ok {
			return nil
		}
	}

	present := a.Fields.Present()
	p.leadMetrics.ObserveExtraction(a.Validation.ConfidenceScore, present)
	p.leadMetrics.ObserveQualification(a.Qualification.IsQualified)
	p.events.BillExtracted(ctx, leadID, present, a.Validation.ConfidenceScore, a.Validation.ValidationErrors)
	p.events.LeadQualified(ctx, leadID, a.Qualification.Score, a.Qualification.IsQualified)

	if p.publisher != nil {
		evt := events.BillExtractedV1{
			LeadPhone:       leadID,
			ConfidenceScore: a.Validation.ConfidenceScore,
			IsValid:         a.Validation.IsValid,
			ExtractedAt:     p.now().UTC(),
		}
		if prov, ok := a.Fields.Provider(); ok {
			evt.Provider = prov
		}
		if amount, ok := a.Fields.TotalAmount(); ok {
			evt.TotalAmount = &amount
		}
		if err := p.publisher.Publish(ctx, events.LeadAggregate(leadID), evt); err != nil {
			p.logger.Warn("failed to publish bill extraction", "lead_id", leadID, "error", err)
		}
	}
	return &a
}

func (p *Processor) partialFor(out *Outcome) conversation.PartialContext {
	var partial conversation.PartialContext
	if out.Intent != location.IntentUnknown {
		intent := string(out.Intent)
		partial.Intent = &intent
	}
	if out.Location != nil {
		city, state := out.Location.City, out.Location.State
		partial.City = &city
		partial.State = &state
	}
	if a := out.Analysis; a != nil {
		partial.LastExtraction = &conversation.LastExtraction{
			Fields:        a.Fields,
			Validation:    a.Validation,
			Qualification: a.Qualification,
			ProcessedAt:   p.now().UTC(),
		}
	}
	partial.Completed = out.Intent == location.IntentOptOut
	return partial
}

func (p *Processor) archiveBill(ctx context.Context, bill media.Bill, a *Analysis) {
	entry, err := p.archive.SaveBill(ctx, bill)
	if err != nil {
		p.events.ErrorOccurred(ctx, bill.LeadPhone, "archive_bill", err)
		return
	}
	if a != nil {
		if prov, ok := a.Fields.Provider(); ok {
			entry.Provider = prov
		}
		entry.Confidence = a.Validation.ConfidenceScore
		entry.IsQualified = a.Qualification.IsQualified
	}
	if err := p.archive.AppendManifest(ctx, entry); err != nil {
		p.events.ErrorOccurred(ctx, bill.LeadPhone, "archive_manifest", err)
	}
}

// recordLead persists what the turn learned and reports whether the lead
// crossed the qualification threshold for the first time.
func (p *Processor) recordLead(ctx context.Context, leadID string, evt InboundEvent, c *conversation.Context, a *Analysis) (bool, error) {
	prev, err := p.finder.GetByPhone(ctx, leadID)
	if err != nil && !errors.Is(err, leads.ErrLeadNotFound) {
		return false, fmt.Errorf("intake: load lead: %w", err)
	}

	req := &leads.UpsertLeadRequest{Phone: leadID, Source: leadSource}
	if name := strings.TrimSpace(evt.PushName); name != "" && (prev == nil || prev.Name == "") {
		req.Name = &name
	}
	if c.HasLocation() {
		city, state := c.City, c.State
		req.City = &city
		req.State = &state
	}
	if a != nil {
		v := a.Fields.Values()
		if v.CustomerName != nil {
			req.Name = v.CustomerName
		}
		req.Provider = v.Provider
		req.MonthlyAmount = v.TotalAmount
		score := a.Qualification.Score
		req.QualificationScore = &score
		req.IsQualified = a.Qualification.IsQualified
	}
	lead, err := p.leads.Upsert(ctx, req)
	if err != nil {
		return false, fmt.Errorf("intake: upsert lead: %w", err)
	}

	if !req.IsQualified || (prev != nil && prev.IsQualified) {
		return false, nil
	}
	if err := events.Claim(ctx, p.processed, QualifiedScope, leadID); err != nil {
		if !errors.Is(err, events.ErrAlreadyProcessed) {
			p.logger.Warn("qualification guard failed", "lead_id", leadID, "error", err)
		}
		return false, nil
	}
	if p.publisher != nil {
		qualified := events.LeadQualifiedV1{
			LeadPhone:          leadID,
			CustomerName:       lead.Name,
			City:               lead.City,
			State:              lead.State,
			Provider:           lead.Provider,
			TotalAmount:        lead.MonthlyAmount,
			QualificationScore: lead.QualificationScore,
			QualifiedAt:        p.now().UTC(),
		}
		if lead.QualifiedAt != nil {
			qualified.QualifiedAt = lead.QualifiedAt.UTC()
		}
		if err := p.publisher.Publish(ctx, events.LeadAggregate(leadID), qualified); err != nil {
			p.events.ErrorOccurred(ctx, leadID, "publish_qualified", err)
		}
	}
	return true, nil
}

// reply sends the turn's answer and, once the send is confirmed, arms the
// follow-up race.
func (p *Processor) reply(ctx context.Context, evt InboundEvent, out *Outcome) error {
	t := turn{
		intent:   out.Intent,
		context:  conversation.OrInitial(out.Context, out.LeadID),
		analysis: out.Analysis,
	}
	out.Reply, out.ReplySource = composeReply(ctx, p.llm, t, evt.Body)

	meta := map[string]string{"reply_source": out.ReplySource}
	if evt.MessageID != "" {
		meta["in_reply_to"] = evt.MessageID
	}
	res, err := p.sender.Send(ctx, messaging.OutboundMessage{
		To:       out.LeadID,
		Body:     out.Reply,
		Kind:     messaging.KindReply,
		Metadata: meta,
	})
	if err != nil {
		p.msgMetrics.ObserveOutbound("failed", false)
		p.events.ErrorOccurred(ctx, out.LeadID, "send_reply", err)
		return fmt.Errorf("intake: send reply: %w", err)
	}
	p.msgMetrics.ObserveOutbound("sent", false)
	p.events.ReplySent(ctx, out.LeadID, len(out.Reply), out.ReplySource)
	p.appendTranscript(ctx, conversation.TranscriptMessage{
		LeadID:    out.LeadID,
		Direction: conversation.DirectionOutbound,
		Kind:      messaging.KindReply,
		Body:      out.Reply,
		CreatedAt: p.now().UTC(),
	})
	p.logger.Debug("reply sent", "lead_id", out.LeadID, "provider", res.Provider, "provider_message_id", res.ProviderMessageID)

	if p.followup == nil || out.Context.Completed {
		return nil
	}
	id, err := p.followup.Arm(ctx, out.LeadID)
	if err != nil {
		p.events.ErrorOccurred(ctx, out.LeadID, "arm_followup", err)
		return nil
	}
	out.RaceID = id
	return nil
}

func (p *Processor) appendTranscript(ctx context.Context, msg conversation.TranscriptMessage) {
	if p.transcripts == nil {
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = p.now().UTC()
	}
	if err := p.transcripts.Append(ctx, msg); err != nil {
		p.logger.Warn("failed to append transcript", "lead_id", msg.LeadID, "error", err)
	}
}
