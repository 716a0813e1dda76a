package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"condo-assistant/internal/domain"
)

// StatementKey is the temporary object name of a rendered statement.
func StatementKey(tenantID, propertyID, id string) string {
	return fmt.Sprintf("tmp/%s/%s/statements/%s.pdf", tenantID, propertyID, id)
}

func (e *Engine) sendStatement(ctx context.Context, t *turn, ident domain.Identity) error {
	m := ident.Match
	var (
		charges  []domain.Charge
		payments []domain.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		charges, err = e.Directory.Charges(gctx, m.TenantID, m.PropertyID, m.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = e.Directory.Payments(gctx, m.TenantID, m.PropertyID, m.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return classify("account_fetch_error", err)
	}

	now := e.now().UTC()
	statement := domain.Statement{
		Resident:    ident,
		Phone:       t.conv.Phone,
		Charges:     charges,
		Payments:    payments,
		Totals:      domain.ComputeTotals(charges, payments),
		GeneratedAt: now,
	}
	pdf, err := e.Reports.RenderStatement(ctx, statement)
	if err != nil {
		return classify("statement_render_error", err)
	}

	id := newUUID()
	key := StatementKey(m.TenantID, m.PropertyID, id)
	if err := e.Objects.Upload(ctx, key, pdf, "application/pdf"); err != nil {
		return classify("statement_upload_error", err)
	}
	if err := e.Objects.MakePublic(ctx, key); err != nil {
		return classify("statement_publish_error", err)
	}
	// Deletion is booked before the link is sent.
	if err := e.Deletions.Schedule(ctx, domain.ScheduledDeletion{
		ID:         id,
		ObjectPath: key,
		Bucket:     e.Objects.Bucket(),
		Deadline:   now.Add(e.statementTTL),
		Status:     domain.DeletionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return classify("deletion_schedule_error", err)
	}

	if err := t.conv.Set(domain.StateCompleted, domain.ResolvedData{Identity: ident}); err != nil {
		return newError(ErrorInternal, "invalid_transition", err)
	}
	t.log.Info().Str("key", key).Int64("outstanding", statement.Totals.Outstanding).Msg("statement published")
	return e.replyMedia(ctx, t, domain.OutboundMedia{
		Type:     domain.MediaDocument,
		Link:     e.Objects.PublicURL(key),
		Caption:  msgStatementCaption(statement.Totals),
		Filename: statementFilename,
	})
}
