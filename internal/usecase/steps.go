package usecase

import (
	"context"
	"strings"

	"condo-assistant/internal/domain"
)

var menuFlows = map[string]domain.Flow{
	"1": domain.FlowPayment,
	"2": domain.FlowDocuments,
	"3": domain.FlowAccount,
}

func (e *Engine) stepInitial(ctx context.Context, t *turn) error {
	if t.msg.Kind == domain.KindText && isGreeting(t.text) {
		return e.moveTo(ctx, t, domain.StateMenuSelection, domain.NoData{}, msgMenu())
	}
	return e.reply(ctx, t, msgInitialHint)
}

func (e *Engine) stepFinished(ctx context.Context, t *turn) error {
	return e.reply(ctx, t, msgCompletedHint)
}

func (e *Engine) stepMenu(ctx context.Context, t *turn) error {
	flow, ok := menuFlows[strings.TrimSuffix(t.text, ".")]
	if !ok {
		return e.reply(ctx, t, msgInvalidMenu())
	}
	return e.moveTo(ctx, t, flow.EmailState(), domain.NoData{}, msgAskEmail(flow))
}

func (e *Engine) stepEmail(ctx context.Context, t *turn) error {
	email := strings.ToLower(t.text)
	if err := e.validate.Var(email, "required,email"); err != nil {
		return e.reply(ctx, t, msgInvalidEmail)
	}
	flow := t.conv.State.Flow()
	return e.moveTo(ctx, t, flow.DepartmentState(), domain.EmailData{Email: email}, msgAskUnit)
}

func (e *Engine) stepDepartment(ctx context.Context, t *turn) error {
	data, ok := t.conv.Data.(domain.EmailData)
	if !ok {
		return newError(ErrorInternal, "department_without_email", nil)
	}
	if t.text == "" {
		if t.msg.Kind.IsMedia() {
			return e.reply(ctx, t, msgExpectText+" "+msgEmptyUnit)
		}
		return e.reply(ctx, t, msgEmptyUnit)
	}
	flow := t.conv.State.Flow()

	matches, err := e.Resolver.Resolve(ctx, t.conv.Phone, data.Email, t.text)
	if err != nil {
		return classify("identity_resolve_error", err)
	}
	t.log.Info().Int("matches", len(matches)).Str("flow", string(flow)).Msg("identity resolved")

	switch len(matches) {
	case 0:
		return e.moveTo(ctx, t, flow.EmailState(), domain.NoData{}, msgNoMatch())
	case 1:
		return e.enterFlow(ctx, t, flow, domain.Identity{Email: data.Email, Unit: t.text, Match: matches[0]})
	}
	return e.moveTo(ctx, t, flow.SelectionState(), domain.CandidatesData{
		Email:      data.Email,
		Unit:       t.text,
		Candidates: matches,
	}, msgCandidates(matches))
}

func (e *Engine) stepCondominium(ctx context.Context, t *turn) error {
	data, ok := t.conv.Data.(domain.CandidatesData)
	if !ok {
		return newError(ErrorInternal, "selection_without_candidates", nil)
	}
	i, ok := parseIndex(t.text, len(data.Candidates))
	if !ok {
		return e.reply(ctx, t, msgInvalidCandidate(data.Candidates))
	}
	return e.enterFlow(ctx, t, t.conv.State.Flow(), domain.Identity{
		Email: data.Email,
		Unit:  data.Unit,
		Match: data.Candidates[i-1],
	})
}

// enterFlow starts the flow-specific part once the resident is identified.
func (e *Engine) enterFlow(ctx context.Context, t *turn, flow domain.Flow, ident domain.Identity) error {
	switch flow {
	case domain.FlowPayment:
		return e.startPayment(ctx, t, ident)
	case domain.FlowDocuments:
		return e.startDocuments(ctx, t, ident)
	case domain.FlowAccount:
		return e.sendStatement(ctx, t, ident)
	}
	return newError(ErrorInternal, "unknown_flow", nil)
}
