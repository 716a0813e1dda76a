package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/media"
	"condo-assistant/internal/metrics"
	"condo-assistant/internal/repository"
)

const defaultStatementTTL = time.Hour

type ContextStore interface {
	Get(ctx context.Context, phone string) (*domain.Conversation, error)
	Save(ctx context.Context, conv *domain.Conversation) error
}

type IdentityResolver interface {
	Resolve(ctx context.Context, phone, email, unit string) ([]domain.Match, error)
}

type Directory interface {
	UnpaidCharges(ctx context.Context, tenantID, propertyID, userID string) ([]domain.Charge, error)
	Charges(ctx context.Context, tenantID, propertyID, userID string) ([]domain.Charge, error)
	Payments(ctx context.Context, tenantID, propertyID, userID string) ([]domain.Payment, error)
	DocumentCatalog(ctx context.Context, tenantID, propertyID string) (map[domain.DocumentKey]string, error)
	CreateVoucher(ctx context.Context, v domain.Voucher) error
}

type Dispatcher interface {
	SendText(ctx context.Context, conv *domain.Conversation, body string) error
	SendMedia(ctx context.Context, conv *domain.Conversation, m domain.OutboundMedia) error
	RecordInbound(ctx context.Context, conv *domain.Conversation, msg domain.InboundMessage)
}

type MediaPipeline interface {
	DownloadAndStore(ctx context.Context, ref domain.MediaRef, tenantID, propertyID string) (media.Stored, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	MakePublic(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
	Bucket() string
}

type DeletionScheduler interface {
	Schedule(ctx context.Context, d domain.ScheduledDeletion) error
}

type ReportRenderer interface {
	RenderStatement(ctx context.Context, st domain.Statement) ([]byte, error)
}

type LinkShortener interface {
	Shorten(ctx context.Context, longURL string) string
}

// Deps are the collaborators of the Engine. Shortener is optional.
type Deps struct {
	Contexts   ContextStore
	Resolver   IdentityResolver
	Directory  Directory
	Dispatcher Dispatcher
	Media      MediaPipeline
	Objects    ObjectStore
	Deletions  DeletionScheduler
	Reports    ReportRenderer
	Shortener  LinkShortener
}

// Engine runs one conversation turn per inbound message against the
// persisted conversation state.
type Engine struct {
	Deps
	statementTTL time.Duration
	validate     *validator.Validate
	log          zerolog.Logger
	now          func() time.Time
	steps        map[domain.State]stepFunc
}

// Result summarises a handled turn.
type Result struct {
	Phone    string       `json:"phone"`
	From     domain.State `json:"from"`
	To       domain.State `json:"to"`
	Replies  int          `json:"replies"`
	Failure  string       `json:"failure,omitempty"`
	Conflict bool         `json:"conflict,omitempty"`
}

type stepFunc func(ctx context.Context, t *turn) error

// turn carries the state of one HandleInbound call.
type turn struct {
	conv    *domain.Conversation
	msg     domain.InboundMessage
	text    string
	log     zerolog.Logger
	replies int
}

func NewEngine(d Deps, statementTTL time.Duration, log zerolog.Logger) (*Engine, error) {
	switch {
	case d.Contexts == nil:
		return nil, errors.New("usecase: context store must not be nil")
	case d.Resolver == nil:
		return nil, errors.New("usecase: identity resolver must not be nil")
	case d.Directory == nil:
		return nil, errors.New("usecase: directory must not be nil")
	case d.Dispatcher == nil:
		return nil, errors.New("usecase: dispatcher must not be nil")
	case d.Media == nil:
		return nil, errors.New("usecase: media pipeline must not be nil")
	case d.Objects == nil:
		return nil, errors.New("usecase: object store must not be nil")
	case d.Deletions == nil:
		return nil, errors.New("usecase: deletion scheduler must not be nil")
	case d.Reports == nil:
		return nil, errors.New("usecase: report renderer must not be nil")
	}
	if statementTTL <= 0 {
		statementTTL = defaultStatementTTL
	}
	e := &Engine{
		Deps:         d,
		statementTTL: statementTTL,
		validate:     validator.New(),
		log:          log.With().Str("component", "engine").Logger(),
		now:          time.Now,
	}
	e.steps = e.stepTable()
	return e, nil
}

func (e *Engine) stepTable() map[domain.State]stepFunc {
	steps := map[domain.State]stepFunc{
		domain.StateInitial:                        e.stepInitial,
		domain.StateMenuSelection:                  e.stepMenu,
		domain.StatePaymentAwaitingChargeSelection: e.stepChargeSelection,
		domain.StatePaymentAwaitingFile:            e.stepVoucherFile,
		domain.StateDocumentsAwaitingSelection:     e.stepDocumentSelection,
		domain.StateCompleted:                      e.stepFinished,
		domain.StateError:                          e.stepFinished,
	}
	for _, f := range []domain.Flow{domain.FlowPayment, domain.FlowDocuments, domain.FlowAccount} {
		steps[f.EmailState()] = e.stepEmail
		steps[f.DepartmentState()] = e.stepDepartment
		steps[f.SelectionState()] = e.stepCondominium
	}
	return steps
}

// HandleInbound processes one inbound message end to end: load context,
// audit, classify, run the state's step and persist. Failures inside the
// step move the conversation to ERROR and are answered with an apology; the
// returned error is reserved for failures to load or save the context.
// Result.Failure is set whenever the engine already apologised.
func (e *Engine) HandleInbound(ctx context.Context, msg domain.InboundMessage) (Result, error) {
	start := e.now()
	phone := strings.TrimSpace(msg.From)
	if phone == "" {
		return Result{}, newError(ErrorInvalidInput, "missing_sender", nil)
	}
	metrics.InboundMessagesTotal.WithLabelValues(string(msg.Kind)).Inc()

	conv, err := e.Contexts.Get(ctx, phone)
	if err != nil {
		return Result{Phone: phone}, newError(ErrorInternal, "context_load_error", err)
	}
	from := conv.State
	e.Dispatcher.RecordInbound(ctx, conv, msg)

	t := &turn{
		conv: conv,
		msg:  msg,
		text: strings.TrimSpace(msg.Text),
		log: e.log.With().
			Str("phone", phone).
			Str("message_id", msg.ID).
			Logger(),
	}
	res := Result{Phone: phone, From: from}

	if stepErr := e.route(ctx, t); stepErr != nil {
		ue := classify("step_error", stepErr)
		res.Failure = string(ue.Code) + ":" + ue.Reason
		e.fail(ctx, t, ue)
	}

	if err := e.Contexts.Save(ctx, conv); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			t.log.Warn().Err(err).Str("state", string(conv.State)).Msg("context changed concurrently, keeping the other write")
			res.Conflict = true
		} else {
			saveErr := newError(ErrorInternal, "context_save_error", err)
			if res.Failure == "" {
				t.log.Error().Err(err).Msg("context save failed")
				res.Failure = string(saveErr.Code) + ":" + saveErr.Reason
				e.apologise(ctx, t, msgApology)
			}
			res.To, res.Replies = conv.State, t.replies
			return res, saveErr
		}
	}

	res.To, res.Replies = conv.State, t.replies
	if from != conv.State {
		metrics.StateTransitionsTotal.WithLabelValues(string(from), string(conv.State)).Inc()
	}
	metrics.TurnDuration.WithLabelValues(string(from)).Observe(e.now().Sub(start).Seconds())
	t.log.Info().
		Str("from", string(from)).
		Str("to", string(conv.State)).
		Int("replies", t.replies).
		Msg("turn handled")
	return res, nil
}

// route classifies the message and runs the step of the current state.
func (e *Engine) route(ctx context.Context, t *turn) error {
	if t.msg.Kind != domain.KindText && !t.msg.Kind.IsMedia() {
		return e.reply(ctx, t, msgUnsupportedKind)
	}
	if t.msg.Kind == domain.KindText && isGreeting(t.text) && t.conv.State != domain.StateInitial {
		t.log.Debug().Str("state", string(t.conv.State)).Msg("greeting resets conversation")
		t.conv.Reset()
	}
	step, ok := e.steps[t.conv.State]
	if !ok {
		return newError(ErrorInternal, "unknown_state", errors.New(string(t.conv.State)))
	}
	return step(ctx, t)
}

// fail moves the conversation to ERROR, keeping a resolved identity so the
// apology is still audited under the tenant, and sends one apology.
func (e *Engine) fail(ctx context.Context, t *turn, cause *Error) {
	var data domain.StateData = domain.NoData{}
	if ident, ok := t.conv.Identity(); ok {
		data = domain.ResolvedData{Identity: ident}
	}
	_ = t.conv.Set(domain.StateError, data)
	t.log.Error().Err(cause).Str("code", string(cause.Code)).Msg("turn failed")

	apology := msgApology
	var mediaErr *media.Error
	if errors.As(cause, &mediaErr) {
		apology = msgMediaRetry
	}
	e.apologise(ctx, t, apology)
}

// apologise sends the turn's single apology through the conversation, so it
// is audited under the resolved tenant when there is one.
func (e *Engine) apologise(ctx context.Context, t *turn, body string) {
	if err := e.Dispatcher.SendText(ctx, t.conv, body); err != nil {
		t.log.Error().Err(err).Msg("apology send failed")
		return
	}
	t.replies++
}

func (e *Engine) reply(ctx context.Context, t *turn, body string) error {
	if err := e.Dispatcher.SendText(ctx, t.conv, body); err != nil {
		return classify("send_error", err)
	}
	t.replies++
	return nil
}

func (e *Engine) replyMedia(ctx context.Context, t *turn, m domain.OutboundMedia) error {
	if err := e.Dispatcher.SendMedia(ctx, t.conv, m); err != nil {
		return classify("send_media_error", err)
	}
	t.replies++
	return nil
}

// moveTo changes state and then sends body, so the reply is audited under
// the new state's identity.
func (e *Engine) moveTo(ctx context.Context, t *turn, state domain.State, data domain.StateData, body string) error {
	if err := t.conv.Set(state, data); err != nil {
		return newError(ErrorInternal, "invalid_transition", err)
	}
	return e.reply(ctx, t, body)
}

var newUUID = func() string {
	return uuid.NewString()
}
