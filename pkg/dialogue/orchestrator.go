// Package dialogue drives one conversational turn from the user's message to
// a terminated stream of events.
package dialogue

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/clarify"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/aretw0/canvasbuilder/pkg/reclassify"
	"github.com/aretw0/canvasbuilder/pkg/translator"
)

// Classifier is the subset of intent.Classifier the orchestrator drives.
type Classifier interface {
	Classify(ctx context.Context, message string, canvas *domain.CanvasContext) (domain.Classification, error)
	ClassifyWithHistory(ctx context.Context, message string, canvas *domain.CanvasContext, history []domain.ChatMessage) (domain.Classification, error)
}

// Reclassifier turns a clarification response into a classification.
type Reclassifier interface {
	Reclassify(ctx context.Context, originalMessage string, resp *domain.ClarificationResponse, canvas *domain.CanvasContext) (domain.Classification, error)
}

// ClarificationGenerator builds the questions the orchestrator may ask.
type ClarificationGenerator interface {
	GenerateIntentClarification(cls *domain.Classification, message string) (domain.ClarificationRequest, error)
	GenerateEntityClarification(res *domain.EntityResolutionResult) (domain.ClarificationRequest, error)
	GenerateScopeClarification(res *domain.EntityResolutionResult, referenceText string) (domain.ClarificationRequest, error)
}

const (
	thinkingText  = "Understanding your request..."
	cancelledText = "No problem, I've cancelled that. Let me know what you'd like to do next."
)

// Orchestrator produces the event stream of a turn. It keeps no per-turn
// state and may serve concurrent turns of different sessions.
type Orchestrator struct {
	classifier   Classifier
	reclassifier Reclassifier
	generator    ClarificationGenerator
	resolver     ports.EntityResolver
	translator   ports.OperationTranslator
	now          func() time.Time
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithResolver enables entity and scope resolution.
func WithResolver(r ports.EntityResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithTranslator replaces the default translator.Translator.
func WithTranslator(t ports.OperationTranslator) Option {
	return func(o *Orchestrator) {
		o.translator = t
	}
}

// WithReclassifier replaces the default reclassify.Coordinator.
func WithReclassifier(r Reclassifier) Option {
	return func(o *Orchestrator) {
		o.reclassifier = r
	}
}

// WithGenerator replaces the default clarify.Generator.
func WithGenerator(g ClarificationGenerator) Option {
	return func(o *Orchestrator) {
		o.generator = g
	}
}

// WithClock sets the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// NewOrchestrator creates an Orchestrator around classifier.
func NewOrchestrator(classifier Classifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		generator:  clarify.NewGenerator(),
		translator: translator.New(),
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.reclassifier == nil {
		o.reclassifier = reclassify.NewCoordinator(classifier, reclassify.WithLogger(o.logger))
	}
	return o
}

// Stream validates turn and returns the lazy event sequence that processes it.
// Nothing runs until the sequence is iterated.
//
// A Cancelled clarification response is honored before the message is
// validated, so a cancellation turn may carry an empty message. Every other
// turn needs a non-empty message; validation failures wrap
// domain.ErrInvalidArgument and no sequence is returned.
//
// The sequence always ends with exactly one EventComplete unless the consumer
// stops early or ctx is done, in which case it ends silently.
func (o *Orchestrator) Stream(ctx context.Context, turn *domain.Turn) (iter.Seq[domain.StreamEvent], error) {
	if turn == nil {
		return nil, domain.MissingArgument("turn")
	}

	var resp *domain.ClarificationResponse
	if turn.Clarification != nil {
		r := *turn.Clarification
		resp = &r
	}
	if resp != nil && resp.Type == domain.ResponseCancelled {
		return o.sequence(ctx, turn, func(r *run) { r.cancel() }), nil
	}

	msg, err := SanitizeInput(turn.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil, domain.EmptyArgument("message")
	}

	return o.sequence(ctx, turn, func(r *run) { r.process(msg, resp) }), nil
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[domain.StreamEvent]) []domain.StreamEvent {
	var events []domain.StreamEvent
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func (o *Orchestrator) sequence(ctx context.Context, turn *domain.Turn, body func(*run)) iter.Seq[domain.StreamEvent] {
	return func(yield func(domain.StreamEvent) bool) {
		canvas := turn.Canvas
		if canvas == nil {
			canvas = turn.Session.Canvas
		}
		sessionID := turn.SessionID
		if sessionID == "" {
			sessionID = turn.Session.SessionID
		}

		r := &run{
			o:         o,
			ctx:       ctx,
			turn:      turn,
			sessionID: sessionID,
			canvas:    canvas,
			yield:     yield,
			phase:     PhaseStart,
			outcome:   domain.OutcomeResolved,
			log:       o.logger.With("session_id", sessionID),
		}
		start := time.Now()
		defer func() { r.report(start) }()
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if r.inYield {
				panic(rec)
			}
			r.log.Error("Turn panicked", "phase", r.phase, "panic", rec)
			r.fail(fmt.Sprintf("internal error: %v", rec), domain.CodeInternal)
		}()

		body(r)
	}
}

// run is the state of one iteration of a turn sequence.
type run struct {
	o         *Orchestrator
	ctx       context.Context
	turn      *domain.Turn
	sessionID string
	canvas    *domain.CanvasContext
	log       *slog.Logger

	yield    func(domain.StreamEvent) bool
	inYield  bool
	stopped  bool
	done     bool
	events   int
	phase    Phase
	outcome  domain.TurnOutcome
	category domain.IntentCategory
}

// emit forwards ev to the consumer. It returns false once the consumer has
// stopped or ctx is done; nothing is emitted after that.
func (r *run) emit(ev domain.StreamEvent) bool {
	if r.stopped {
		return false
	}
	if r.ctx.Err() != nil {
		r.stopped = true
		return false
	}
	r.events++
	r.inYield = true
	ok := r.yield(ev)
	r.inYield = false
	if ev.IsTerminal() {
		r.done = true
	}
	if !ok {
		r.stopped = true
	}
	return ok
}

func (r *run) complete() {
	r.phase = PhaseComplete
	r.emit(domain.CompleteEvent())
}

func (r *run) fail(message, code string) {
	r.outcome = domain.OutcomeFailed
	r.log.Warn("Turn failed", "phase", r.phase, "code", code, "err", message)
	if r.emit(domain.ErrorEvent(message, code)) {
		r.complete()
	}
}

func (r *run) cancel() {
	r.outcome = domain.OutcomeCancelled
	r.category = domain.IntentClarify
	if r.emit(domain.MessageEvent(cancelledText)) {
		r.complete()
	}
}

func (r *run) process(msg string, resp *domain.ClarificationResponse) {
	r.phase = PhaseClassifying
	if !r.emit(domain.ThinkingEvent(thinkingText)) {
		return
	}

	cls, bound, err := r.classify(msg, resp)
	if r.ctx.Err() != nil {
		r.stopped = true
		return
	}
	if err != nil {
		code := domain.CodeInternal
		if resp != nil {
			code = domain.CodeReclassificationFailed
		}
		r.fail(err.Error(), code)
		return
	}
	r.category = cls.Category

	// A rejection comes back as a fresh question about what to do instead.
	if cls.Category == domain.IntentClarify && cls.Clarification != nil {
		r.clarify(cls, *cls.Clarification)
		return
	}

	if resp == nil && clarify.NeedsClarification(cls.Confidence, nil) {
		req := cls.Clarification
		if req == nil {
			generated, err := r.o.generator.GenerateIntentClarification(&cls, msg)
			if err != nil {
				r.fail(err.Error(), domain.CodeClarificationFailed)
				return
			}
			req = &generated
		}
		r.clarify(cls, *req)
		return
	}

	req, err := r.resolve(&cls, resp == nil || bound)
	if r.ctx.Err() != nil {
		r.stopped = true
		return
	}
	if err != nil {
		r.fail(err.Error(), domain.CodeResolutionFailed)
		return
	}
	if req != nil {
		r.clarify(cls, *req)
		return
	}

	r.phase = PhaseResolved
	tr, err := r.translate(cls)
	if r.ctx.Err() != nil {
		r.stopped = true
		return
	}
	if err != nil {
		r.fail(err.Error(), domain.CodeTranslationFailed)
		return
	}

	if tr.Message != "" && !r.emit(domain.MessageEvent(tr.Message)) {
		return
	}
	for _, op := range tr.Operations {
		if !r.emit(domain.OperationEvent(op)) {
			return
		}
	}

	state := r.turn.Session.WithCanvas(r.canvas).WithExchange(msg, tr.Message, r.o.now())
	if state.SessionID == "" {
		state.SessionID = r.sessionID
	}
	if r.emit(domain.StateUpdateEvent(state)) {
		r.complete()
	}
}

// classify obtains the turn's classification. bound reports that the response
// was a selection applied directly to a pending entity or scope question.
func (r *run) classify(msg string, resp *domain.ClarificationResponse) (cls domain.Classification, bound bool, err error) {
	session := r.turn.Session

	if resp == nil {
		cls, err = r.o.classifier.ClassifyWithHistory(r.ctx, msg, r.canvas, session.History)
		return cls, false, err
	}

	if cls, ok := selectionBinding(session, resp, r.canvas); ok {
		r.log.Debug("Bound selection to pending question", "option", resp.SelectedOptionID)
		return cls, true, nil
	}

	if resp.OriginalClassification == nil && session.LastClassification != nil {
		last := session.LastClassification.Clone()
		resp.OriginalClassification = &last
	}
	if resp.SelectedOptionLabel == "" && resp.SelectedOptionID != "" {
		if opt, ok := session.PendingClarification.Option(resp.SelectedOptionID); ok {
			resp.SelectedOptionLabel = opt.Label
		}
	}
	if resp.SessionID == "" {
		resp.SessionID = r.sessionID
	}

	original := resp.OriginalMessage
	if original == "" && session.PendingClarification != nil {
		original = session.LastUserMessage()
	}
	if original == "" && msg != strings.TrimSpace(resp.FreeText) {
		original = msg
	}

	cls, err = r.o.reclassifier.Reclassify(r.ctx, original, resp, r.canvas)
	return cls, false, err
}

// resolve binds the entities cls names by text. It returns a clarification
// when a reference cannot be resolved confidently and asking is allowed.
func (r *run) resolve(cls *domain.Classification, allowClarify bool) (*domain.ClarificationRequest, error) {
	if r.o.resolver == nil {
		return nil, nil
	}

	for _, ref := range unresolved(*cls, r.canvas) {
		var (
			res *domain.EntityResolutionResult
			err error
		)
		if ref.isScope() {
			res, err = r.o.resolver.ResolveScope(r.ctx, ref.text, ref.scopeCategory)
		} else {
			res, err = r.o.resolver.ResolveNode(r.ctx, ref.text, r.canvas)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", ref.text, err)
		}
		if res == nil {
			continue
		}

		confidence := res.Confidence
		if best, ok := res.Best(); ok && confidence >= domain.EntityConfidenceThreshold {
			bind(cls, ref, best.ID, best.Label)
			continue
		}
		if !allowClarify || !clarify.NeedsClarification(cls.Confidence, &confidence) {
			continue
		}

		var req domain.ClarificationRequest
		if ref.isScope() {
			req, err = r.o.generator.GenerateScopeClarification(res, ref.text)
		} else {
			req, err = r.o.generator.GenerateEntityClarification(res)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build clarification for %q: %w", ref.text, err)
		}
		r.log.Debug("Entity needs clarification", "reference", ref.text, "confidence", confidence)
		return &req, nil
	}
	return nil, nil
}

func (r *run) clarify(cls domain.Classification, req domain.ClarificationRequest) {
	r.phase = PhaseClarifying
	r.outcome = domain.OutcomeClarifying

	ev, err := clarify.FormatForStreaming(&req)
	if err != nil {
		r.fail(err.Error(), domain.CodeClarificationFailed)
		return
	}
	trigger := cls.Clone()
	trigger.Clarification = ev.Clarification
	ev.Classification = &trigger

	if r.o.hooks.OnClarification != nil {
		r.o.hooks.OnClarification(r.ctx, ev.Clarification)
	}
	if r.emit(ev) {
		r.complete()
	}
}

func (r *run) translate(cls domain.Classification) (tr ports.Translation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("translator panicked: %v", rec)
		}
	}()
	if r.o.translator == nil {
		return ports.Translation{}, fmt.Errorf("no translator configured")
	}
	return r.o.translator.Translate(r.ctx, cls, r.canvas)
}

func (r *run) report(start time.Time) {
	outcome := r.outcome
	if !r.done {
		outcome = domain.OutcomeAborted
	}
	r.log.Debug("Turn finished",
		"outcome", outcome,
		"category", r.category,
		"events", r.events,
	)
	if r.o.hooks.OnTurnComplete == nil {
		return
	}
	r.o.hooks.OnTurnComplete(r.ctx, &domain.TurnEvent{
		SessionID: r.sessionID,
		Outcome:   outcome,
		Category:  r.category,
		Events:    r.events,
		Duration:  time.Since(start),
	})
}
