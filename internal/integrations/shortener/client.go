package shortener

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://tinyurl.com/api-create.php"

// Client shortens links through a TinyURL-compatible endpoint that answers
// GET ?url=<long> with the short link as plain text. It never fails: any
// problem yields the original link.
type Client struct {
	endpoint   string
	httpClient *resty.Client
	log        zerolog.Logger
}

func NewClient(endpoint string, timeout time.Duration, log zerolog.Logger) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: resty.New().
			SetHeader("User-Agent", "condo-assistant/1.0").
			SetTimeout(timeout),
		log: log.With().Str("component", "shortener").Logger(),
	}
}

// Shorten returns a short link for longURL, or longURL itself when the
// service is unavailable.
func (c *Client) Shorten(ctx context.Context, longURL string) string {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("url", longURL).
		Get(c.endpoint)
	if err != nil {
		c.log.Warn().Err(err).Msg("shorten request failed")
		return longURL
	}
	if resp.IsError() {
		c.log.Warn().Int("status", resp.StatusCode()).Msg("shorten request rejected")
		return longURL
	}
	short := strings.TrimSpace(resp.String())
	if !strings.HasPrefix(short, "http://") && !strings.HasPrefix(short, "https://") {
		c.log.Warn().Str("body", short).Msg("shorten response is not a link")
		return longURL
	}
	return short
}
