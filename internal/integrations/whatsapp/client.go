package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"condo-assistant/internal/domain"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v20.0"
	defaultTimeout   = 15 * time.Second
	defaultRetryWait = 300 * time.Millisecond
	maxErrorBody     = 4096
)

// ErrTooLarge is returned by Download when the media exceeds the byte limit.
var ErrTooLarge = errors.New("whatsapp: media exceeds size limit")

// TokenSource yields the Graph API bearer token.
type TokenSource interface {
	Value(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("whatsapp: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// MediaInfo is the metadata the Graph API returns for an inbound media id.
type MediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type mediaBody struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type sendRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *textBody  `json:"text,omitempty"`
	Image            *mediaBody `json:"image,omitempty"`
	Document         *mediaBody `json:"document,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Client talks to the WhatsApp Cloud API. Sends are retried on transient
// failures; media lookups and downloads are not.
type Client struct {
	phoneNumberID string
	token         TokenSource

	baseURL    string
	timeout    time.Duration
	maxRetries int
	retryWait  time.Duration
	httpClient *http.Client

	send  *resty.Client
	fetch *resty.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a failed send is retried and the initial
// wait between attempts.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// NewClient creates a Client sending from the given business phone number id.
func NewClient(token TokenSource, phoneNumberID string, opts ...Option) (*Client, error) {
	if token == nil {
		return nil, errors.New("whatsapp: token source must not be nil")
	}
	phoneNumberID = strings.TrimSpace(phoneNumberID)
	if phoneNumberID == "" {
		return nil, errors.New("whatsapp: phone number id must not be empty")
	}
	c := &Client{
		phoneNumberID: phoneNumberID,
		token:         token,
		baseURL:       defaultBaseURL,
		timeout:       defaultTimeout,
		maxRetries:    2,
		retryWait:     defaultRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}

	c.send = c.newResty().
		SetRetryCount(c.maxRetries).
		SetRetryWaitTime(c.retryWait).
		SetRetryMaxWaitTime(8 * c.retryWait).
		AddRetryCondition(isTransient)
	c.fetch = c.newResty()
	return c, nil
}

func (c *Client) newResty() *resty.Client {
	var r *resty.Client
	if c.httpClient != nil {
		r = resty.NewWithClient(c.httpClient)
	} else {
		r = resty.New()
	}
	return r.
		SetBaseURL(c.baseURL).
		SetHeader("User-Agent", "condo-assistant/1.0").
		SetTimeout(c.timeout)
}

// isTransient reports whether a send attempt should be retried: network
// failures, throttling and server errors.
func isTransient(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", errors.New("whatsapp: text body must not be empty")
	}
	return c.sendMessage(ctx, sendRequest{
		To:   to,
		Type: "text",
		Text: &textBody{Body: body},
	})
}

// SendMedia sends an image or document referenced by public link.
func (c *Client) SendMedia(ctx context.Context, to string, m domain.OutboundMedia) (string, error) {
	if strings.TrimSpace(m.Link) == "" {
		return "", errors.New("whatsapp: media link must not be empty")
	}
	req := sendRequest{To: to, Type: string(m.Type)}
	switch m.Type {
	case domain.MediaImage:
		req.Image = &mediaBody{Link: m.Link, Caption: m.Caption}
	case domain.MediaDocument:
		req.Document = &mediaBody{Link: m.Link, Caption: m.Caption, Filename: m.Filename}
	default:
		return "", fmt.Errorf("whatsapp: unsupported media type %q", m.Type)
	}
	return c.sendMessage(ctx, req)
}

func (c *Client) sendMessage(ctx context.Context, req sendRequest) (string, error) {
	if strings.TrimSpace(req.To) == "" {
		return "", errors.New("whatsapp: recipient must not be empty")
	}
	token, err := c.token.Value(ctx)
	if err != nil {
		return "", fmt.Errorf("whatsapp: resolve token: %w", err)
	}
	req.MessagingProduct = "whatsapp"
	req.RecipientType = "individual"

	var out sendResponse
	path := "/" + c.phoneNumberID + "/messages"
	resp, err := c.send.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post(path)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send request failed: %w", err)
	}
	if resp.IsError() {
		return "", statusError(resp, c.baseURL+path)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", errors.New("whatsapp: send response carried no message id")
	}
	return out.Messages[0].ID, nil
}

// MediaURL resolves an inbound media id to its short-lived download URL.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (MediaInfo, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return MediaInfo{}, errors.New("whatsapp: media id must not be empty")
	}
	token, err := c.token.Value(ctx)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("whatsapp: resolve token: %w", err)
	}

	var info MediaInfo
	path := "/" + mediaID
	resp, err := c.fetch.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&info).
		Get(path)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("whatsapp: media lookup failed: %w", err)
	}
	if resp.IsError() {
		return MediaInfo{}, statusError(resp, c.baseURL+path)
	}
	if info.URL == "" {
		return MediaInfo{}, errors.New("whatsapp: media lookup returned no url")
	}
	return info, nil
}

// Download fetches the binary behind a URL returned by MediaURL. Bodies
// larger than maxBytes fail with ErrTooLarge; maxBytes <= 0 disables the
// limit.
func (c *Client) Download(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	token, err := c.token.Value(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: resolve token: %w", err)
	}
	resp, err := c.fetch.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: download failed: %w", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return nil, "", &HTTPStatusError{StatusCode: resp.StatusCode(), URL: url, Body: string(buf)}
	}

	reader := io.Reader(body)
	if maxBytes > 0 {
		reader = io.LimitReader(body, maxBytes+1)
	}
	buf, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: read media body: %w", err)
	}
	if maxBytes > 0 && int64(len(buf)) > maxBytes {
		return nil, "", ErrTooLarge
	}
	return buf, resp.Header().Get("Content-Type"), nil
}

func statusError(resp *resty.Response, url string) *HTTPStatusError {
	body := resp.String()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPStatusError{StatusCode: resp.StatusCode(), URL: url, Body: body}
}
