package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/repository"
)

const maxNameLookups = 8

// Directory is the read side of the multi-tenant directory used to resolve
// residents.
type Directory interface {
	FindUsers(ctx context.Context, lookupKey string) ([]domain.Match, error)
	PropertyName(ctx context.Context, tenantID, propertyID string) (string, error)
}

// Resolver maps a phone number plus self-declared email and unit to the
// directory records they identify.
type Resolver struct {
	dir Directory
	log zerolog.Logger
}

func NewResolver(dir Directory, log zerolog.Logger) (*Resolver, error) {
	if dir == nil {
		return nil, errors.New("identity: directory must not be nil")
	}
	return &Resolver{dir: dir, log: log.With().Str("component", "identity").Logger()}, nil
}

// Resolve returns every directory record matching all three inputs exactly
// after normalization, ordered by record path and free of duplicates. An
// empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, phone, email, unit string) ([]domain.Match, error) {
	p, e, u := NormalizePhone(phone), NormalizeEmail(email), NormalizeUnit(unit)
	if p == "" || e == "" || u == "" {
		return nil, nil
	}

	found, err := r.dir.FindUsers(ctx, repository.LookupKey(p, e, u))
	if err != nil {
		return nil, fmt.Errorf("identity: Resolve: %w", err)
	}

	seen := make(map[string]struct{}, len(found))
	matches := make([]domain.Match, 0, len(found))
	for _, m := range found {
		if _, dup := seen[m.Path]; dup {
			continue
		}
		seen[m.Path] = struct{}{}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })

	r.enrichNames(ctx, matches)
	return matches, nil
}

// enrichNames fills property display names. Failures leave the name empty.
func (r *Resolver) enrichNames(ctx context.Context, matches []domain.Match) {
	if len(matches) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxNameLookups)
	for i := range matches {
		if matches[i].PropertyName != "" {
			continue
		}
		i := i
		g.Go(func() error {
			m := &matches[i]
			name, err := r.dir.PropertyName(gctx, m.TenantID, m.PropertyID)
			if err != nil {
				r.log.Warn().Err(err).
					Str("tenant_id", m.TenantID).
					Str("property_id", m.PropertyID).
					Msg("property name lookup failed")
				return nil
			}
			m.PropertyName = name
			return nil
		})
	}
	_ = g.Wait()
}
