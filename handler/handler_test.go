package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/repository"
	"condo-assistant/internal/usecase"
)

type stubEngine struct {
	res   usecase.Result
	err   error
	panic bool
	got   []domain.InboundMessage
}

func (s *stubEngine) HandleInbound(_ context.Context, msg domain.InboundMessage) (usecase.Result, error) {
	s.got = append(s.got, msg)
	if s.panic {
		panic("nil map")
	}
	return s.res, s.err
}

type memInbox struct {
	seen map[string]bool
	err  error
}

func (m *memInbox) MarkInbound(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	if m.seen[id] {
		return repository.ErrDuplicate
	}
	m.seen[id] = true
	return nil
}

type recNotifier struct {
	to   []string
	body []string
}

func (r *recNotifier) SendText(_ context.Context, conv *domain.Conversation, body string) error {
	r.to = append(r.to, conv.Phone)
	r.body = append(r.body, body)
	return nil
}

type staticSecret string

func (s staticSecret) Value(context.Context) (string, error) { return string(s), nil }

type failingSecret struct{}

func (failingSecret) Value(context.Context) (string, error) {
	return "", errors.New("ssm throttled")
}

type fixture struct {
	h        *Handler
	engine   *stubEngine
	inbox    *memInbox
	notifier *recNotifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		engine:   &stubEngine{res: usecase.Result{Phone: "5215512345678", From: domain.StateInitial, To: domain.StateMenuSelection, Replies: 1}},
		inbox:    &memInbox{seen: map[string]bool{}},
		notifier: &recNotifier{},
	}
	h, err := NewHandler(f.engine, f.inbox, f.notifier, opts, zerolog.Nop())
	require.NoError(t, err)
	f.h = h
	return f
}

const textDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"phone_number_id": "PN1"},
        "messages": [{
          "from": "5215512345678",
          "id": "wamid.A",
          "timestamp": "1772370000",
          "type": "text",
          "text": {"body": "Hola"}
        }]
      }
    }]
  }]
}`

const statusDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "statuses": [{"id": "wamid.X", "status": "delivered"}]
  }}]}]
}`

func postEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/webhook",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &memInbox{}, &recNotifier{}, Options{}, zerolog.Nop())
	require.Error(t, err)
	_, err = NewHandler(&stubEngine{}, nil, &recNotifier{}, Options{}, zerolog.Nop())
	require.Error(t, err)
	_, err = NewHandler(&stubEngine{}, &memInbox{}, nil, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestHandle_TextMessage(t *testing.T) {
	f := newFixture(t, Options{})

	resp, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Headers[headerCorrelationID])

	require.Len(t, f.engine.got, 1)
	msg := f.engine.got[0]
	require.Equal(t, "wamid.A", msg.ID)
	require.Equal(t, "5215512345678", msg.From)
	require.Equal(t, domain.KindText, msg.Kind)
	require.Equal(t, "Hola", msg.Text)
	require.Equal(t, int64(1772370000), msg.Timestamp.Unix())

	out := parseBody[deliveryResponse](t, resp.Body)
	require.Equal(t, 1, out.Received)
	require.Equal(t, 1, out.Handled)
	require.Equal(t, domain.StateMenuSelection, out.Results[0].To)
	require.Empty(t, f.notifier.body)
}

func TestHandle_StatusesAreIgnored(t *testing.T) {
	f := newFixture(t, Options{})
	resp, err := f.h.Handle(context.Background(), postEvent(statusDelivery))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, f.engine.got)
	require.Equal(t, 0, parseBody[deliveryResponse](t, resp.Body).Received)
}

func TestHandle_MalformedBodyStill200(t *testing.T) {
	f := newFixture(t, Options{})
	resp, err := f.h.Handle(context.Background(), postEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorInvalidInput), parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_DuplicateDeliverySkipped(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)

	resp, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Len(t, f.engine.got, 1)
	out := parseBody[deliveryResponse](t, resp.Body)
	require.True(t, out.Results[0].Duplicate)
	require.Equal(t, 0, out.Handled)
}

func TestHandle_DedupeFailureStillHandles(t *testing.T) {
	f := newFixture(t, Options{})
	f.inbox.err = errors.New("throttled")
	_, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Len(t, f.engine.got, 1)
}

func TestHandle_EngineErrorSendsApology(t *testing.T) {
	f := newFixture(t, Options{})
	f.engine.err = &usecase.Error{Code: usecase.ErrorInternal, Reason: "context_save_error"}

	resp, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[deliveryResponse](t, resp.Body)
	require.Equal(t, "INTERNAL_ERROR:context_save_error", out.Results[0].Error)
	require.Equal(t, []string{"5215512345678"}, f.notifier.to)
	require.Equal(t, []string{usecase.ApologyText}, f.notifier.body)
}

func TestHandle_EngineAlreadyApologised(t *testing.T) {
	f := newFixture(t, Options{})
	f.engine.res.Failure = "INTERNAL_ERROR:unpaid_charges_error"
	f.engine.err = &usecase.Error{Code: usecase.ErrorInternal, Reason: "context_save_error"}

	resp, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "INTERNAL_ERROR:context_save_error", parseBody[deliveryResponse](t, resp.Body).Results[0].Error)
	require.Empty(t, f.notifier.body)
}

func TestHandle_SecretUnavailableStill200(t *testing.T) {
	f := newFixture(t, Options{AppSecret: failingSecret{}})

	resp, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorInternal), parseBody[errorResponse](t, resp.Body).Error)
	require.Empty(t, f.engine.got)
}

func TestHandle_BadBase64Still200(t *testing.T) {
	f := newFixture(t, Options{})
	event := postEvent(textDelivery)
	event.IsBase64Encoded = true
	event.Body = "%%%"

	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorInvalidInput), parseBody[errorResponse](t, resp.Body).Error)
	require.Empty(t, f.engine.got)
}

func TestHandle_PanicIsRecovered(t *testing.T) {
	f := newFixture(t, Options{})
	f.engine.panic = true

	resp, err := f.h.Handle(context.Background(), postEvent(textDelivery))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "INTERNAL_ERROR:panic", parseBody[deliveryResponse](t, resp.Body).Results[0].Error)
	require.Len(t, f.notifier.body, 1)
}

func TestHandle_Signature(t *testing.T) {
	f := newFixture(t, Options{AppSecret: staticSecret("s3cret")})

	event := postEvent(textDelivery)
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, f.engine.got)

	event.Headers["x-hub-signature-256"] = sign("s3cret", textDelivery)
	resp, err = f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.engine.got, 1)
}

func TestHandle_Verification(t *testing.T) {
	f := newFixture(t, Options{VerifyToken: "tok"})
	event := events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		QueryStringParameters: map[string]string{
			"hub.mode":         "subscribe",
			"hub.verify_token": "tok",
			"hub.challenge":    "12345",
		},
	}
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "12345", resp.Body)

	event.QueryStringParameters["hub.verify_token"] = "wrong"
	resp, err = f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	f := newFixture(t, Options{})
	event := postEvent(statusDelivery)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers[headerCorrelationID])
}

func TestRegister_EchoRoutes(t *testing.T) {
	f := newFixture(t, Options{VerifyToken: "tok"})
	e := echo.New()
	f.h.Register(e)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "abc", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textDelivery))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, parseBody[deliveryResponse](t, rec.Body.String()).Handled)
	require.NotEmpty(t, rec.Header().Get(headerCorrelationID))
}

func TestParseMessages_Kinds(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"messages":[
	  {"from":"1","id":"a","type":"image","image":{"id":"m1","mime_type":"image/jpeg"}},
	  {"from":"1","id":"b","type":"document","document":{"id":"m2","mime_type":"application/pdf; charset=binary","filename":"pago.pdf"}},
	  {"from":"1","id":"c","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"opt-2","title":"2"}}},
	  {"from":"1","id":"d","type":"sticker","sticker":{"id":"s"}},
	  {"from":"1","id":"e","type":"button","button":{"text":"Hola"}}
	]}}]}]}`
	msgs, err := parseMessages([]byte(body))
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	require.Equal(t, domain.KindImage, msgs[0].Kind)
	require.Equal(t, "m1", msgs[0].Media.ID)
	require.Equal(t, domain.KindDocument, msgs[1].Kind)
	require.Equal(t, "application/pdf", msgs[1].Media.MimeType)
	require.Equal(t, "pago.pdf", msgs[1].Media.Filename)
	require.Equal(t, domain.KindText, msgs[2].Kind)
	require.Equal(t, "2", msgs[2].Text)
	require.Equal(t, domain.KindOther, msgs[3].Kind)
	require.Equal(t, "sticker", msgs[3].RawType)
	require.Equal(t, domain.KindText, msgs[4].Kind)
	require.Equal(t, "Hola", msgs[4].Text)
}

func TestVerifySignature(t *testing.T) {
	require.NoError(t, verifySignature([]byte("k"), []byte("body"), sign("k", "body")))
	require.Error(t, verifySignature([]byte("k"), []byte("body"), sign("other", "body")))
	require.Error(t, verifySignature([]byte("k"), []byte("body"), "sha256=zz"))
	require.Error(t, verifySignature([]byte("k"), []byte("body"), ""))
	require.Error(t, verifySignature(nil, []byte("body"), sign("k", "body")))
}
