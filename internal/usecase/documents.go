package usecase

import (
	"context"
	"path"

	"condo-assistant/internal/domain"
)

func (e *Engine) startDocuments(ctx context.Context, t *turn, ident domain.Identity) error {
	m := ident.Match
	catalog, err := e.Directory.DocumentCatalog(ctx, m.TenantID, m.PropertyID)
	if err != nil {
		return classify("document_catalog_error", err)
	}
	docs := domain.BuildDocumentMenu(catalog)
	if len(docs) == 0 {
		return e.moveTo(ctx, t, domain.StateCompleted, domain.ResolvedData{Identity: ident}, msgNoDocuments(m.PropertyName))
	}
	return e.moveTo(ctx, t, domain.StateDocumentsAwaitingSelection, domain.DocumentsData{
		Identity:  ident,
		Documents: docs,
	}, msgDocuments(docs))
}

func (e *Engine) stepDocumentSelection(ctx context.Context, t *turn) error {
	data, ok := t.conv.Data.(domain.DocumentsData)
	if !ok {
		return newError(ErrorInternal, "selection_without_documents", nil)
	}
	i, ok := parseIndex(t.text, len(data.Documents))
	if !ok {
		return e.reply(ctx, t, msgInvalidDocument(data.Documents))
	}
	doc := data.Documents[i-1]
	if err := t.conv.Set(domain.StateCompleted, domain.ResolvedData{Identity: data.Identity}); err != nil {
		return newError(ErrorInternal, "invalid_transition", err)
	}

	exists, err := e.Objects.Exists(ctx, doc.Reference)
	if err != nil {
		return classify("document_head_error", err)
	}
	if !exists {
		t.log.Warn().Str("document", string(doc.Key)).Str("reference", doc.Reference).Msg("document missing from storage")
		return e.reply(ctx, t, msgDocUnreachable)
	}

	link := e.Objects.PublicURL(doc.Reference)
	err = e.replyMedia(ctx, t, domain.OutboundMedia{
		Type:     domain.MediaDocument,
		Link:     link,
		Caption:  doc.Title,
		Filename: path.Base(doc.Reference),
	})
	if err == nil {
		return nil
	}
	t.log.Warn().Err(err).Str("document", string(doc.Key)).Msg("document send failed, falling back to link")
	if e.Shortener != nil {
		link = e.Shortener.Shorten(ctx, link)
	}
	return e.reply(ctx, t, msgDocumentLink(doc.Title, link))
}
