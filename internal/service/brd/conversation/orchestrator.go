// Package conversation runs a chat turn: persist the user's message, build the
// prompt, call the model, store the reply and any document change, then
// notify the room.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reqforge/internal/config"
	"reqforge/internal/domain"
	"reqforge/internal/domain/models/brd"
	"reqforge/internal/domain/repositories"
	brdRepo "reqforge/internal/domain/repositories/brd"
	brdSvc "reqforge/internal/domain/services/brd"
	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/metrics"
	brdservice "reqforge/internal/service/brd"
	"reqforge/internal/service/brd/intent"
	"reqforge/internal/service/brd/parser"
	"reqforge/internal/service/brd/prompt"
)

// User-visible error messages.
const (
	msgProjectNotFound  = "Project not found."
	msgSaveMessage      = "Failed to save your message. Please try again."
	msgLoadContext      = "Failed to load the project context. Please try again."
	msgAIUnavailable    = "The AI service is currently unavailable. Please try again in a moment."
	msgAINotConfigured  = "AI generation is not configured on this server."
	msgPersistReply     = "The AI replied but the response could not be saved. Please try again."
	msgDocumentConflict = "The document was changed by someone else while this reply was generated. Please resend your message."
)

// Project reads that fail for reasons other than absence are retried before
// the turn gives up, so a brief database hiccup does not drop the message.
const projectReadAttempts = 3

var projectRetryDelay = 200 * time.Millisecond

// suggestionPrefix is prepended to an accepted suggestion's text.
const suggestionPrefix = "apply suggestion: "

// Requester is the connection that sent the event. Replies addressed to it
// are never broadcast.
type Requester interface {
	Send(event string, payload any) error
}

// InstructionSource yields template-specific section instructions.
type InstructionSource interface {
	InstructionsFor(id brd.TemplateType) string
}

// TurnRequest is one incoming chat message.
type TurnRequest struct {
	ProjectID string
	UserID    string
	Message   string
	Timestamp time.Time
}

func (r TurnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProjectID, validation.Required),
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Message, validation.Required, validation.RuneLength(1, config.MaxChatMessageLength)),
	)
}

// Deps are the collaborators of an Orchestrator. Scraper may be nil, in
// which case commands are treated as plain chat.
type Deps struct {
	Projects  brdRepo.ProjectRepository
	Documents brdRepo.DocumentRepository
	Turns     brdRepo.TurnRepository
	Uploads   brdRepo.UploadRepository
	Tx        repositories.TransactionManager

	Templates InstructionSource
	Assembler *prompt.Assembler
	Generator domainllm.Generator
	Parser    *parser.Parser
	Scraper   brdSvc.WebScraper
	Rooms     brdSvc.RoomBroadcaster

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Options tune the turn pipeline.
type Options struct {
	Model          string
	MaxAttempts    int
	HistoryWindow  int
	ConflictPolicy string
}

type Orchestrator struct {
	Deps
	opts   Options
	tracer trace.Tracer
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.ConflictPolicy == "" {
		opts.ConflictPolicy = config.ConflictPolicyLastWriterWins
	}
	return &Orchestrator{
		Deps:   deps,
		opts:   opts,
		tracer: otel.Tracer("reqforge/conversation"),
	}
}

// turnFailure is a turn-local failure that has a user-facing message.
type turnFailure struct {
	outcome string
	message string
	err     error
}

func (f *turnFailure) Error() string { return fmt.Sprintf("%s: %v", f.outcome, f.err) }
func (f *turnFailure) Unwrap() error { return f.err }

// HandleMessage runs one turn. Every failure is reported to the requester as
// an error event; the returned error is for logging only.
func (o *Orchestrator) HandleMessage(ctx context.Context, requester Requester, req TurnRequest) error {
	ctx, span := o.tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.String("project.id", req.ProjectID),
		attribute.Int("message.length", len(req.Message)),
	))
	defer span.End()

	start := time.Now()
	err := o.run(ctx, requester, req)

	outcome := metrics.OutcomeOK
	var failure *turnFailure
	if errors.As(err, &failure) {
		outcome = failure.outcome
		o.send(requester, req.ProjectID, brd.EventError, brd.ErrorPayload{Message: failure.message})
		span.RecordError(err)
		span.SetStatus(codes.Error, failure.outcome)
	}
	span.SetAttributes(attribute.String("turn.outcome", outcome))

	if o.Metrics != nil {
		o.Metrics.Turns.WithLabelValues(outcome).Inc()
		o.Metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}

	o.Logger.Info("chat turn finished",
		"project_id", req.ProjectID,
		"user_id", req.UserID,
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// AcceptSuggestion resubmits a suggestion's text as a new user message.
func (o *Orchestrator) AcceptSuggestion(ctx context.Context, requester Requester, projectID, userID, suggestion string) error {
	return o.HandleMessage(ctx, requester, TurnRequest{
		ProjectID: projectID,
		UserID:    userID,
		Message:   suggestionPrefix + suggestion,
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) run(ctx context.Context, requester Requester, req TurnRequest) error {
	if err := req.Validate(); err != nil {
		return &turnFailure{outcome: metrics.OutcomeError, message: err.Error(), err: fmt.Errorf("%w: %v", domain.ErrValidation, err)}
	}

	project, err := o.loadProject(ctx, req.ProjectID, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &turnFailure{outcome: metrics.OutcomeError, message: msgProjectNotFound, err: err}
		}
		o.Logger.Error("dropping chat message, project could not be loaded",
			"project_id", req.ProjectID,
			"user_id", req.UserID,
			"message_length", len(req.Message),
			"error", err,
		)
		return &turnFailure{outcome: metrics.OutcomeError, message: msgLoadContext, err: err}
	}

	// Received: the user's turn is durable before anything else happens.
	userTurn := &brd.Turn{ProjectID: project.ID, Role: brd.RoleUser, Content: req.Message}
	if err := o.Turns.Append(ctx, userTurn); err != nil {
		return &turnFailure{outcome: metrics.OutcomePersistFailed, message: msgSaveMessage, err: err}
	}

	message := o.applyIntent(ctx, requester, project.ID, req.Message)

	// ContextBuilt
	prior, err := o.Documents.Get(ctx, project.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return &turnFailure{outcome: metrics.OutcomeError, message: msgLoadContext, err: err}
	}
	if err != nil {
		prior = nil
	}

	uploads, err := o.Uploads.ListByProject(ctx, project.ID)
	if err != nil {
		o.Logger.Warn("failed to load uploads, continuing without them", "project_id", project.ID, "error", err)
		uploads = nil
	}

	history := o.loadHistory(ctx, project.ID, userTurn.ID)

	promptText := o.Assembler.Assemble(prompt.Input{
		Project:              project,
		Document:             prior,
		Uploads:              uploads,
		History:              history,
		Message:              message,
		TemplateInstructions: o.Templates.InstructionsFor(project.TemplateType),
	})

	// Generated
	raw, err := o.Generator.Generate(ctx, promptText, o.opts.Model, o.opts.MaxAttempts)
	if err != nil {
		msg := msgAIUnavailable
		if errors.Is(err, domainllm.ErrNoCredentials) {
			msg = msgAINotConfigured
		}
		return &turnFailure{outcome: metrics.OutcomeAIFailed, message: msg, err: err}
	}

	// Parsed
	result := o.Parser.Parse(raw)

	// Persisted
	updated, err := o.persist(ctx, project, prior, result)
	if err != nil {
		var conflict *domain.VersionConflictError
		if errors.As(err, &conflict) {
			return &turnFailure{outcome: metrics.OutcomeConflict, message: msgDocumentConflict, err: err}
		}
		return &turnFailure{outcome: metrics.OutcomePersistFailed, message: msgPersistReply, err: err}
	}

	// Broadcast only when the document actually changed
	if updated != nil {
		o.Rooms.Broadcast(project.ID, brd.EventDocumentUpdated, brd.DocumentUpdatedPayload{Document: updated})
	}

	// Complete
	o.send(requester, project.ID, brd.EventAIResponse, brd.AIResponsePayload{
		Message:        result.Message,
		Suggestions:    result.Suggestions,
		DocumentUpdate: result.DocumentUpdate,
	})
	return nil
}

// loadProject checks ownership and returns the project. Not-found is final;
// other errors are retried with a linear delay.
func (o *Orchestrator) loadProject(ctx context.Context, projectID, userID string) (*brd.Project, error) {
	var lastErr error
	for attempt := 1; attempt <= projectReadAttempts; attempt++ {
		project, err := o.Projects.GetByID(ctx, projectID, userID)
		if err == nil {
			return project, nil
		}
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			return nil, err
		}
		lastErr = err

		if attempt == projectReadAttempts {
			break
		}
		o.Logger.Warn("project read failed, retrying",
			"project_id", projectID,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, errors.Join(lastErr, ctx.Err())
		case <-time.After(projectRetryDelay * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

// applyIntent runs a recognised command and returns the message to use in
// the prompt. Scrape failures degrade to the plain message.
func (o *Orchestrator) applyIntent(ctx context.Context, requester Requester, projectID, message string) string {
	in, ok := intent.Detect(message)
	if !ok || o.Scraper == nil {
		return message
	}

	switch in.Kind {
	case intent.KindScrape:
		o.send(requester, projectID, brd.EventNotice, brd.NoticePayload{Message: in.Interim(), Kind: brd.NoticeScraping})

		text, err := o.Scraper.Scrape(ctx, in.URL)
		if err != nil {
			o.Logger.Warn("scrape failed, continuing without web context", "project_id", projectID, "url", in.URL, "error", err)
			o.send(requester, projectID, brd.EventNotice, brd.NoticePayload{Message: in.FailureNotice(), Kind: brd.NoticeScrapeFailed})
			return in.Fallback()
		}
		return in.Augment(text)
	}
	return message
}

// loadHistory returns the recent conversation without the turn just written.
func (o *Orchestrator) loadHistory(ctx context.Context, projectID, currentTurnID string) []brd.Turn {
	turns, err := o.Turns.ListRecent(ctx, projectID, o.opts.HistoryWindow+1)
	if err != nil {
		o.Logger.Warn("failed to load conversation history", "project_id", projectID, "error", err)
		return nil
	}

	history := make([]brd.Turn, 0, len(turns))
	for _, t := range turns {
		if t.ID == currentTurnID {
			continue
		}
		history = append(history, t)
	}
	return history
}

// persist writes the assistant turn and, when the reply carries one, the new
// document content in a single transaction.
func (o *Orchestrator) persist(ctx context.Context, project *brd.Project, prior *brd.Document, result parser.Result) (*brd.Document, error) {
	var updated *brd.Document

	err := o.Tx.ExecTx(ctx, func(ctx context.Context) error {
		assistant := &brd.Turn{
			ProjectID:   project.ID,
			Role:        brd.RoleAssistant,
			Content:     result.Message,
			Suggestions: result.Suggestions,
		}
		if err := o.Turns.Append(ctx, assistant); err != nil {
			return &domain.PersistenceError{Op: "assistant turn", Err: err}
		}

		if result.DocumentUpdate == nil {
			return nil
		}

		var previous []brd.Conflict
		if prior != nil {
			previous = prior.Conflicts
		}
		doc := &brd.Document{
			ProjectID:    project.ID,
			TemplateType: project.TemplateType,
			Content:      *result.DocumentUpdate,
			Conflicts:    brdservice.RefreshConflicts(*result.DocumentUpdate, previous),
		}

		if err := o.Documents.Upsert(ctx, doc, o.expectedVersion(prior)); err != nil {
			var conflict *domain.VersionConflictError
			if errors.As(err, &conflict) {
				return err
			}
			return &domain.PersistenceError{Op: "document", Err: err}
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// expectedVersion is nil under last-writer-wins.
func (o *Orchestrator) expectedVersion(prior *brd.Document) *int64 {
	if o.opts.ConflictPolicy != config.ConflictPolicyOptimistic {
		return nil
	}
	var v int64
	if prior != nil {
		v = prior.Version
	}
	return &v
}

func (o *Orchestrator) send(requester Requester, projectID, event string, payload any) {
	if err := requester.Send(event, payload); err != nil {
		o.Logger.Warn("failed to deliver event to requester",
			"project_id", projectID,
			"event", event,
			"error", err,
		)
	}
}
