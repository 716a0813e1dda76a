package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"condo-assistant/internal/domain"
)

var pdfMagic = []byte("%PDF")

// Client renders account statements through the external report service.
type Client struct {
	baseURL    string
	httpClient *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("reports: base url must not be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("User-Agent", "condo-assistant/1.0").
			SetTimeout(timeout),
	}, nil
}

// RenderStatement posts the statement and returns the rendered PDF.
func (c *Client) RenderStatement(ctx context.Context, st domain.Statement) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/pdf").
		SetBody(st).
		Post("/statements")
	if err != nil {
		return nil, fmt.Errorf("reports: render request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("reports: render error (%d): %s", resp.StatusCode(), resp.String())
	}
	body := resp.Body()
	if !bytes.HasPrefix(body, pdfMagic) {
		return nil, errors.New("reports: renderer did not return a PDF")
	}
	return body, nil
}
