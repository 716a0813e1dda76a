package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"condo-assistant/internal/domain"
)

type fakeDirectory struct {
	mu       sync.Mutex
	matches  []domain.Match
	findErr  error
	names    map[string]string
	nameErr  map[string]error
	lastKey  string
	nameHits int
}

func (f *fakeDirectory) FindUsers(_ context.Context, lookupKey string) ([]domain.Match, error) {
	f.lastKey = lookupKey
	out := make([]domain.Match, len(f.matches))
	copy(out, f.matches)
	return out, f.findErr
}

func (f *fakeDirectory) PropertyName(_ context.Context, _, propertyID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameHits++
	if err := f.nameErr[propertyID]; err != nil {
		return "", err
	}
	return f.names[propertyID], nil
}

func TestNewResolver_NilDirectory(t *testing.T) {
	_, err := NewResolver(nil, zerolog.Nop())
	require.Error(t, err)
}

func TestResolve_NormalizesInputsIntoLookupKey(t *testing.T) {
	dir := &fakeDirectory{}
	r, err := NewResolver(dir, zerolog.Nop())
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "5215512345678", " Ána@Example.com", "A-101")
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, "5512345678|ana@example.com|a101", dir.lastKey)
}

func TestResolve_BlankInputsMatchNothing(t *testing.T) {
	dir := &fakeDirectory{matches: []domain.Match{{Path: "x"}}}
	r, _ := NewResolver(dir, zerolog.Nop())
	got, err := r.Resolve(context.Background(), "5512345678", "ana@example.com", " - ")
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, dir.lastKey)
}

func TestResolve_DedupesSortsAndEnriches(t *testing.T) {
	dir := &fakeDirectory{
		matches: []domain.Match{
			{TenantID: "t2", PropertyID: "p2", UserID: "u2", Path: "b"},
			{TenantID: "t1", PropertyID: "p1", UserID: "u1", Path: "a"},
			{TenantID: "t2", PropertyID: "p2", UserID: "u2", Path: "b"},
		},
		names:   map[string]string{"p1": "Torre Norte"},
		nameErr: map[string]error{"p2": errors.New("throttled")},
	}
	r, _ := NewResolver(dir, zerolog.Nop())

	first, err := r.Resolve(context.Background(), "5512345678", "ana@example.com", "101")
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "a", first[0].Path)
	require.Equal(t, "Torre Norte", first[0].PropertyName)
	require.Equal(t, "b", first[1].Path)
	require.Empty(t, first[1].PropertyName)
	require.Equal(t, "p2", first[1].Label())

	second, err := r.Resolve(context.Background(), "5512345678", "ana@example.com", "101")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolve_DirectoryError(t *testing.T) {
	dir := &fakeDirectory{findErr: errors.New("boom")}
	r, _ := NewResolver(dir, zerolog.Nop())
	_, err := r.Resolve(context.Background(), "5512345678", "ana@example.com", "101")
	require.ErrorContains(t, err, "boom")
}
