package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/repository"
	"condo-assistant/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSignature     = "X-Hub-Signature-256"
	maxBodyBytes        = 1 << 20
	webhookPath         = "/webhook"
)

type Engine interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) (usecase.Result, error)
}

// Inbox records delivered message ids; it returns repository.ErrDuplicate
// for an id it has already seen.
type Inbox interface {
	MarkInbound(ctx context.Context, messageID string) error
}

type Notifier interface {
	SendText(ctx context.Context, conv *domain.Conversation, body string) error
}

type Secret interface {
	Value(ctx context.Context) (string, error)
}

type Options struct {
	// VerifyToken answers the provider's subscription handshake.
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 checks when set.
	AppSecret Secret
}

type Handler struct {
	engine   Engine
	inbox    Inbox
	notifier Notifier
	opts     Options
	log      zerolog.Logger
}

func NewHandler(engine Engine, inbox Inbox, notifier Notifier, opts Options, log zerolog.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("handler: engine must not be nil")
	}
	if inbox == nil {
		return nil, errors.New("handler: inbox must not be nil")
	}
	if notifier == nil {
		return nil, errors.New("handler: notifier must not be nil")
	}
	return &Handler{
		engine:   engine,
		inbox:    inbox,
		notifier: notifier,
		opts:     opts,
		log:      log.With().Str("component", "webhook").Logger(),
	}, nil
}

type messageResult struct {
	MessageID string `json:"messageId"`
	usecase.Result
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

type deliveryResponse struct {
	Received int             `json:"received"`
	Handled  int             `json:"handled"`
	Results  []messageResult `json:"results"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handle is the Lambda entrypoint for API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(req.Headers, headerCorrelationID)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	log := h.log.With().Str("correlation_id", corrID).Logger()

	var (
		status int
		body   any
	)
	switch req.HTTPMethod {
	case http.MethodGet:
		q := req.QueryStringParameters
		challenge, ok := h.verify(q["hub.mode"], q["hub.verify_token"], q["hub.challenge"])
		if !ok {
			log.Warn().Msg("subscription verification rejected")
			return textResponse(http.StatusForbidden, "forbidden", corrID), nil
		}
		return textResponse(http.StatusOK, challenge, corrID), nil
	case http.MethodPost:
		raw := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				log.Warn().Err(err).Msg("undecodable body")
				status, body = http.StatusOK, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "body is not valid base64"}
				break
			}
			raw = decoded
		}
		status, body = h.deliver(ctx, log, raw, headerValue(req.Headers, headerSignature))
	default:
		status, body = http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED", Message: req.HTTPMethod}
	}
	return jsonResponse(status, body, corrID), nil
}

// Register mounts the webhook on an echo server.
func (h *Handler) Register(e *echo.Echo) {
	e.GET(webhookPath, h.handleVerify)
	e.POST(webhookPath, h.handleDelivery)
}

func (h *Handler) handleVerify(c echo.Context) error {
	challenge, ok := h.verify(c.QueryParam("hub.mode"), c.QueryParam("hub.verify_token"), c.QueryParam("hub.challenge"))
	if !ok {
		return c.String(http.StatusForbidden, "forbidden")
	}
	return c.String(http.StatusOK, challenge)
}

func (h *Handler) handleDelivery(c echo.Context) error {
	corrID := c.Request().Header.Get(headerCorrelationID)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	c.Response().Header().Set(headerCorrelationID, corrID)
	log := h.log.With().Str("correlation_id", corrID).Logger()

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil || len(raw) > maxBodyBytes {
		log.Warn().Int("bytes", len(raw)).Msg("oversized body dropped")
		return c.JSON(http.StatusOK, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "body too large"})
	}
	status, body := h.deliver(c.Request().Context(), log, raw, c.Request().Header.Get(headerSignature))
	return c.JSON(status, body)
}

func (h *Handler) verify(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || h.opts.VerifyToken == "" || token != h.opts.VerifyToken {
		return "", false
	}
	return challenge, true
}

// deliver processes one notification. Everything except a signature that
// was checked and found bad is answered with 200 so the provider does not
// redeliver; outcomes are reported in the body.
func (h *Handler) deliver(ctx context.Context, log zerolog.Logger, raw []byte, signature string) (int, any) {
	if h.opts.AppSecret != nil {
		secret, err := h.opts.AppSecret.Value(ctx)
		if err != nil {
			log.Error().Err(err).Msg("app secret unavailable, delivery dropped")
			return http.StatusOK, errorResponse{Error: string(usecase.ErrorInternal), Message: "signature check unavailable"}
		}
		if err := verifySignature([]byte(secret), raw, signature); err != nil {
			log.Warn().Err(err).Msg("signature rejected")
			return http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED", Message: "invalid signature"}
		}
	}

	msgs, err := parseMessages(raw)
	if err != nil {
		log.Warn().Err(err).Msg("malformed notification")
		return http.StatusOK, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "malformed notification ignored"}
	}

	resp := deliveryResponse{Received: len(msgs), Results: make([]messageResult, 0, len(msgs))}
	for _, msg := range msgs {
		res := h.handleMessage(ctx, log, msg)
		if !res.Duplicate && res.Error == "" {
			resp.Handled++
		}
		resp.Results = append(resp.Results, res)
	}
	return http.StatusOK, resp
}

func (h *Handler) handleMessage(ctx context.Context, log zerolog.Logger, msg domain.InboundMessage) (out messageResult) {
	out.MessageID = msg.ID
	log = log.With().Str("message_id", msg.ID).Str("type", msg.RawType).Logger()

	if err := h.inbox.MarkInbound(ctx, msg.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Info().Msg("duplicate delivery skipped")
			out.Duplicate = true
			return out
		}
		log.Warn().Err(err).Msg("dedupe unavailable, handling anyway")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("turn panicked")
			out.Error = string(usecase.ErrorInternal) + ":panic"
			h.apologise(ctx, log, msg.From)
		}
	}()

	res, err := h.engine.HandleInbound(ctx, msg)
	out.Result = res
	if err != nil {
		var ue *usecase.Error
		if errors.As(err, &ue) {
			out.Error = string(ue.Code) + ":" + ue.Reason
		} else {
			out.Error = string(usecase.ErrorInternal)
		}
		log.Error().Err(err).Msg("turn failed")
		if res.Failure == "" {
			h.apologise(ctx, log, msg.From)
		}
	}
	return out
}

// apologise sends one best-effort notice when the engine could not. No
// conversation was loaded, so it is audited as unregistered.
func (h *Handler) apologise(ctx context.Context, log zerolog.Logger, phone string) {
	if strings.TrimSpace(phone) == "" {
		return
	}
	if err := h.notifier.SendText(ctx, domain.NewConversation(phone), usecase.ApologyText); err != nil {
		log.Warn().Err(err).Msg("apology not delivered")
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","message":"encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: corrID,
		},
		Body: string(b),
	}
}

func textResponse(status int, body, corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "text/plain",
			headerCorrelationID: corrID,
		},
		Body: body,
	}
}
