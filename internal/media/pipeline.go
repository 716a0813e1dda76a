package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/integrations/whatsapp"
	"condo-assistant/internal/metrics"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
	StageUpload   Stage = "upload"
	StagePublish  Stage = "publish"
)

const (
	fallbackExt = ".bin"

	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// extensions maps the content types accepted as vouchers to the extension
// used in the stored object name.
var extensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/webp":               ".webp",
	"image/heic":               ".heic",
	"image/heif":               ".heif",
	"application/pdf":          ".pdf",
	"application/msword":       ".doc",
	mimeDocx:                   ".docx",
	"application/vnd.ms-excel": ".xls",
	mimeXlsx:                   ".xlsx",
}

// Error is the single failure type returned by the pipeline.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("media: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Provider resolves and downloads provider-hosted media.
type Provider interface {
	MediaURL(ctx context.Context, mediaID string) (whatsapp.MediaInfo, error)
	Download(ctx context.Context, url string, maxBytes int64) ([]byte, string, error)
}

// Storage is the durable object store the media is copied into.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	MakePublic(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Pipeline copies inbound attachments into durable storage.
type Pipeline struct {
	provider Provider
	storage  Storage
	maxBytes int64
	log      zerolog.Logger
	now      func() time.Time
}

func NewPipeline(p Provider, s Storage, maxBytes int64, log zerolog.Logger) (*Pipeline, error) {
	if p == nil {
		return nil, errors.New("media: provider must not be nil")
	}
	if s == nil {
		return nil, errors.New("media: storage must not be nil")
	}
	return &Pipeline{
		provider: p,
		storage:  s,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "media").Logger(),
		now:      time.Now,
	}, nil
}

// Stored describes an attachment after it was copied.
type Stored struct {
	URL         string
	Key         string
	ContentType string
	Size        int
}

// DownloadAndStore fetches the attachment, uploads it under the property's
// voucher prefix, makes it publicly readable and returns where it lives.
func (p *Pipeline) DownloadAndStore(ctx context.Context, ref domain.MediaRef, tenantID, propertyID string) (Stored, error) {
	contentType := "unknown"
	stored, err := p.run(ctx, ref, tenantID, propertyID, &contentType)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MediaUploadsTotal.WithLabelValues(contentType, status).Inc()
	return stored, err
}

func (p *Pipeline) run(ctx context.Context, ref domain.MediaRef, tenantID, propertyID string, contentType *string) (Stored, error) {
	if ref.ID == "" {
		return Stored{}, &Error{Stage: StageResolve, Err: errors.New("media id is empty")}
	}
	info, err := p.provider.MediaURL(ctx, ref.ID)
	if err != nil {
		return Stored{}, &Error{Stage: StageResolve, Err: err}
	}
	data, served, err := p.provider.Download(ctx, info.URL, p.maxBytes)
	if err != nil {
		return Stored{}, &Error{Stage: StageDownload, Err: err}
	}
	if len(data) == 0 {
		return Stored{}, &Error{Stage: StageDownload, Err: errors.New("empty media body")}
	}

	ct := pickContentType(data, ref.MimeType, info.MimeType, served)
	*contentType = ct
	ext, ok := extensions[ct]
	if !ok {
		ext = fallbackExt
		p.log.Warn().Str("content_type", ct).Str("media_id", ref.ID).Msg("unrecognized media type, storing as binary")
	}

	key := VoucherKey(tenantID, propertyID, p.now(), uuid.NewString(), ext)
	if err := p.storage.Upload(ctx, key, data, ct); err != nil {
		return Stored{}, &Error{Stage: StageUpload, Err: err}
	}
	if err := p.storage.MakePublic(ctx, key); err != nil {
		return Stored{}, &Error{Stage: StagePublish, Err: err}
	}
	p.log.Info().Str("key", key).Str("content_type", ct).Int("bytes", len(data)).Msg("media stored")
	return Stored{URL: p.storage.PublicURL(key), Key: key, ContentType: ct, Size: len(data)}, nil
}

// VoucherKey is the object name of a stored voucher.
func VoucherKey(tenantID, propertyID string, at time.Time, id, ext string) string {
	at = at.UTC()
	return fmt.Sprintf("tenants/%s/properties/%s/vouchers/%04d/%02d/%s%s",
		tenantID, propertyID, at.Year(), int(at.Month()), id, ext)
}

// pickContentType prefers the first declared type the allow-list knows and
// falls back to sniffing the bytes.
func pickContentType(data []byte, declared ...string) string {
	for _, d := range declared {
		ct := baseType(d)
		if _, ok := extensions[ct]; ok {
			return ct
		}
	}
	detected := baseType(mimetype.Detect(data).String())
	if detected != "" {
		return detected
	}
	return "application/octet-stream"
}

func baseType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(parsed)
	}
	return strings.ToLower(ct)
}
