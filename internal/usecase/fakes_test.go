package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/media"
	"condo-assistant/internal/repository"
)

const testPhone = "5215512345678"

type memContexts struct {
	items   map[string]domain.Conversation
	saves   int
	getErr  error
	saveErr error
}

func newMemContexts() *memContexts {
	return &memContexts{items: map[string]domain.Conversation{}}
}

func (m *memContexts) Get(_ context.Context, phone string) (*domain.Conversation, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.items[phone]
	if !ok {
		return domain.NewConversation(phone), nil
	}
	return &c, nil
}

func (m *memContexts) Save(_ context.Context, conv *domain.Conversation) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if cur, ok := m.items[conv.Phone]; ok && cur.Version != conv.Version {
		return fmt.Errorf("save: %w", repository.ErrConflict)
	}
	conv.Version++
	conv.Persisted = true
	m.items[conv.Phone] = *conv
	return nil
}

func (m *memContexts) state(phone string) domain.State {
	return m.items[phone].State
}

type fakeResolver struct {
	matches []domain.Match
	err     error
	calls   int
}

func (f *fakeResolver) Resolve(context.Context, string, string, string) ([]domain.Match, error) {
	f.calls++
	return f.matches, f.err
}

type fakeDirectory struct {
	mu         sync.Mutex
	unpaid     []domain.Charge
	unpaidErr  error
	charges    []domain.Charge
	payments   []domain.Payment
	accountErr error
	catalog    map[domain.DocumentKey]string
	catalogErr error
	vouchers   []domain.Voucher
	voucherErr error
}

func (f *fakeDirectory) UnpaidCharges(context.Context, string, string, string) ([]domain.Charge, error) {
	return f.unpaid, f.unpaidErr
}

func (f *fakeDirectory) Charges(context.Context, string, string, string) ([]domain.Charge, error) {
	return f.charges, f.accountErr
}

func (f *fakeDirectory) Payments(context.Context, string, string, string) ([]domain.Payment, error) {
	return f.payments, nil
}

func (f *fakeDirectory) DocumentCatalog(context.Context, string, string) (map[domain.DocumentKey]string, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeDirectory) CreateVoucher(_ context.Context, v domain.Voucher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voucherErr != nil {
		return f.voucherErr
	}
	f.vouchers = append(f.vouchers, v)
	return nil
}

type sent struct {
	text       string
	media      *domain.OutboundMedia
	registered bool
	state      domain.State
}

type recDispatcher struct {
	sent     []sent
	inbound  []domain.State
	textErr  error
	mediaErr error
}

func (d *recDispatcher) SendText(_ context.Context, conv *domain.Conversation, body string) error {
	if d.textErr != nil {
		return d.textErr
	}
	_, ok := conv.Identity()
	d.sent = append(d.sent, sent{text: body, registered: ok, state: conv.State})
	return nil
}

func (d *recDispatcher) SendMedia(_ context.Context, conv *domain.Conversation, m domain.OutboundMedia) error {
	if d.mediaErr != nil {
		return d.mediaErr
	}
	_, ok := conv.Identity()
	d.sent = append(d.sent, sent{media: &m, registered: ok, state: conv.State})
	return nil
}

func (d *recDispatcher) RecordInbound(_ context.Context, conv *domain.Conversation, _ domain.InboundMessage) {
	d.inbound = append(d.inbound, conv.State)
}

func (d *recDispatcher) last() sent {
	if len(d.sent) == 0 {
		return sent{}
	}
	return d.sent[len(d.sent)-1]
}

type fakeMedia struct {
	stored media.Stored
	err    error
	refs   []domain.MediaRef
}

func (f *fakeMedia) DownloadAndStore(_ context.Context, ref domain.MediaRef, _, _ string) (media.Stored, error) {
	f.refs = append(f.refs, ref)
	return f.stored, f.err
}

type fakeObjects struct {
	uploads   map[string][]byte
	public    []string
	exists    map[string]bool
	existsErr error
	uploadErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploads: map[string][]byte{}, exists: map[string]bool{}}
}

func (f *fakeObjects) Upload(_ context.Context, key string, data []byte, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeObjects) MakePublic(_ context.Context, key string) error {
	f.public = append(f.public, key)
	return nil
}

func (f *fakeObjects) Exists(_ context.Context, key string) (bool, error) {
	return f.exists[key], f.existsErr
}

func (f *fakeObjects) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (f *fakeObjects) Bucket() string { return "media" }

type fakeDeletions struct {
	scheduled []domain.ScheduledDeletion
	err       error
}

func (f *fakeDeletions) Schedule(_ context.Context, d domain.ScheduledDeletion) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, d)
	return nil
}

type fakeReports struct {
	got *domain.Statement
	pdf []byte
	err error
}

func (f *fakeReports) RenderStatement(_ context.Context, st domain.Statement) ([]byte, error) {
	f.got = &st
	return f.pdf, f.err
}

type fakeShortener struct{}

func (fakeShortener) Shorten(_ context.Context, u string) string { return "https://tiny.example/x" }

type harness struct {
	engine    *Engine
	contexts  *memContexts
	resolver  *fakeResolver
	directory *fakeDirectory
	dispatch  *recDispatcher
	media     *fakeMedia
	objects   *fakeObjects
	deletions *fakeDeletions
	reports   *fakeReports
	seq       int
}

var fixedNow = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

var torreNorte = domain.Match{
	TenantID: "t1", PropertyID: "p1", UserID: "u1", PropertyName: "Torre Norte", Path: "TENANT#t1#PROPERTY#p1#USER#u1",
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		contexts:  newMemContexts(),
		resolver:  &fakeResolver{matches: []domain.Match{torreNorte}},
		directory: &fakeDirectory{},
		dispatch:  &recDispatcher{},
		media:     &fakeMedia{stored: media.Stored{URL: "https://cdn.example.com/v.jpg", ContentType: "image/jpeg"}},
		objects:   newFakeObjects(),
		deletions: &fakeDeletions{},
		reports:   &fakeReports{pdf: []byte("%PDF-1.7")},
	}
	e, err := NewEngine(Deps{
		Contexts:   h.contexts,
		Resolver:   h.resolver,
		Directory:  h.directory,
		Dispatcher: h.dispatch,
		Media:      h.media,
		Objects:    h.objects,
		Deletions:  h.deletions,
		Reports:    h.reports,
		Shortener:  fakeShortener{},
	}, 30*time.Minute, zerolog.Nop())
	require.NoError(t, err)
	e.now = func() time.Time { return fixedNow }
	h.engine = e

	orig := newUUID
	newUUID = func() string { return "fixed-id" }
	t.Cleanup(func() { newUUID = orig })
	return h
}

func (h *harness) text(t *testing.T, body string) Result {
	t.Helper()
	h.seq++
	res, err := h.engine.HandleInbound(context.Background(), domain.InboundMessage{
		ID:   fmt.Sprintf("wamid.%d", h.seq),
		From: testPhone,
		Kind: domain.KindText,
		Text: body,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) attach(t *testing.T, kind domain.MessageKind) Result {
	t.Helper()
	h.seq++
	res, err := h.engine.HandleInbound(context.Background(), domain.InboundMessage{
		ID:    fmt.Sprintf("wamid.%d", h.seq),
		From:  testPhone,
		Kind:  kind,
		Media: &domain.MediaRef{ID: "media-1", MimeType: "image/jpeg"},
	})
	require.NoError(t, err)
	return res
}

func (h *harness) state() domain.State {
	return h.contexts.state(testPhone)
}

// identify walks Hola, the menu option, the email and the unit.
func (h *harness) identify(t *testing.T, option string) {
	t.Helper()
	h.text(t, "Hola")
	h.text(t, option)
	h.text(t, "ana@example.com")
	h.text(t, "101")
}
