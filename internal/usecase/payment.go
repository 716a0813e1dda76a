package usecase

import (
	"context"

	"condo-assistant/internal/domain"
)

func (e *Engine) startPayment(ctx context.Context, t *turn, ident domain.Identity) error {
	m := ident.Match
	charges, err := e.Directory.UnpaidCharges(ctx, m.TenantID, m.PropertyID, m.UserID)
	if err != nil {
		return classify("unpaid_charges_error", err)
	}
	if len(charges) == 0 {
		return e.moveTo(ctx, t, domain.StatePaymentAwaitingFile, domain.VoucherData{Identity: ident}, msgNoCharges)
	}

	pending := make([]domain.PendingCharge, 0, len(charges))
	for i, c := range charges {
		amount := c.Outstanding
		if amount <= 0 {
			amount = c.Amount
		}
		pending = append(pending, domain.PendingCharge{Index: i + 1, ID: c.ID, Concept: c.Concept, Amount: amount})
	}
	return e.moveTo(ctx, t, domain.StatePaymentAwaitingChargeSelection, domain.ChargesData{
		Identity: ident,
		Charges:  pending,
	}, msgCharges(pending))
}

func (e *Engine) stepChargeSelection(ctx context.Context, t *turn) error {
	data, ok := t.conv.Data.(domain.ChargesData)
	if !ok {
		return newError(ErrorInternal, "selection_without_charges", nil)
	}
	picked, invalid := parseSelection(t.text, len(data.Charges))
	if len(picked) == 0 {
		return e.reply(ctx, t, msgInvalidCharges(invalid, len(data.Charges)))
	}
	ids := make([]string, 0, len(picked))
	for _, i := range picked {
		ids = append(ids, data.Charges[i-1].ID)
	}
	return e.moveTo(ctx, t, domain.StatePaymentAwaitingFile, domain.VoucherData{
		Identity:  data.Identity,
		ChargeIDs: ids,
	}, msgAskVoucher)
}

func (e *Engine) stepVoucherFile(ctx context.Context, t *turn) error {
	data, ok := t.conv.Data.(domain.VoucherData)
	if !ok {
		return newError(ErrorInternal, "file_without_voucher", nil)
	}
	if !t.msg.Kind.IsMedia() || t.msg.Media == nil {
		return e.reply(ctx, t, msgAskVoucher)
	}

	m := data.Identity.Match
	stored, err := e.Media.DownloadAndStore(ctx, *t.msg.Media, m.TenantID, m.PropertyID)
	if err != nil {
		return classify("media_pipeline_error", err)
	}
	voucher := domain.Voucher{
		ID:         newUUID(),
		TenantID:   m.TenantID,
		PropertyID: m.PropertyID,
		UserID:     m.UserID,
		ChargeIDs:  data.ChargeIDs,
		FileURL:    stored.URL,
		MimeType:   stored.ContentType,
		Phone:      t.conv.Phone,
		Status:     domain.VoucherStatusPendingReview,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.Directory.CreateVoucher(ctx, voucher); err != nil {
		return classify("voucher_create_error", err)
	}
	t.log.Info().Str("voucher_id", voucher.ID).Int("charges", len(voucher.ChargeIDs)).Msg("voucher recorded")
	return e.moveTo(ctx, t, domain.StateCompleted, domain.ResolvedData{Identity: data.Identity}, msgVoucherReceived)
}
