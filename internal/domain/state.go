package domain

// State is the position of a phone number inside the guided dialogue.
type State string

const (
	StateInitial       State = "INITIAL"
	StateMenuSelection State = "MENU_SELECTION"

	StatePaymentAwaitingEmail                State = "PAYMENT_AWAITING_EMAIL"
	StatePaymentAwaitingDepartment           State = "PAYMENT_AWAITING_DEPARTMENT"
	StatePaymentAwaitingCondominiumSelection State = "PAYMENT_AWAITING_CONDOMINIUM_SELECTION"
	StatePaymentAwaitingChargeSelection      State = "PAYMENT_AWAITING_CHARGE_SELECTION"
	StatePaymentAwaitingFile                 State = "PAYMENT_AWAITING_FILE"

	StateDocumentsAwaitingEmail                State = "DOCUMENTS_AWAITING_EMAIL"
	StateDocumentsAwaitingDepartment           State = "DOCUMENTS_AWAITING_DEPARTMENT"
	StateDocumentsAwaitingCondominiumSelection State = "DOCUMENTS_AWAITING_CONDOMINIUM_SELECTION"
	StateDocumentsAwaitingSelection            State = "DOCUMENTS_AWAITING_SELECTION"

	StateAccountAwaitingEmail                State = "ACCOUNT_AWAITING_EMAIL"
	StateAccountAwaitingDepartment           State = "ACCOUNT_AWAITING_DEPARTMENT"
	StateAccountAwaitingCondominiumSelection State = "ACCOUNT_AWAITING_CONDOMINIUM_SELECTION"

	StateCompleted State = "COMPLETED"
	StateError     State = "ERROR"
)

// Flow is one of the three guided flows offered by the main menu.
type Flow string

const (
	FlowNone      Flow = ""
	FlowPayment   Flow = "PAYMENT"
	FlowDocuments Flow = "DOCUMENTS"
	FlowAccount   Flow = "ACCOUNT"
)

type flowStates struct {
	email      State
	department State
	selection  State
}

var flows = map[Flow]flowStates{
	FlowPayment: {
		email:      StatePaymentAwaitingEmail,
		department: StatePaymentAwaitingDepartment,
		selection:  StatePaymentAwaitingCondominiumSelection,
	},
	FlowDocuments: {
		email:      StateDocumentsAwaitingEmail,
		department: StateDocumentsAwaitingDepartment,
		selection:  StateDocumentsAwaitingCondominiumSelection,
	},
	FlowAccount: {
		email:      StateAccountAwaitingEmail,
		department: StateAccountAwaitingDepartment,
		selection:  StateAccountAwaitingCondominiumSelection,
	},
}

// EmailState returns the flow's email step.
func (f Flow) EmailState() State { return flows[f].email }

// DepartmentState returns the flow's department (unit) step.
func (f Flow) DepartmentState() State { return flows[f].department }

// SelectionState returns the flow's condominium disambiguation step.
func (f Flow) SelectionState() State { return flows[f].selection }

// Flow reports which guided flow a state belongs to, or FlowNone for the
// menu and terminal states.
func (s State) Flow() Flow {
	switch s {
	case StatePaymentAwaitingEmail, StatePaymentAwaitingDepartment, StatePaymentAwaitingCondominiumSelection,
		StatePaymentAwaitingChargeSelection, StatePaymentAwaitingFile:
		return FlowPayment
	case StateDocumentsAwaitingEmail, StateDocumentsAwaitingDepartment, StateDocumentsAwaitingCondominiumSelection,
		StateDocumentsAwaitingSelection:
		return FlowDocuments
	case StateAccountAwaitingEmail, StateAccountAwaitingDepartment, StateAccountAwaitingCondominiumSelection:
		return FlowAccount
	}
	return FlowNone
}

// Terminal reports whether the state can only be left through a greeting reset.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := allowedData[s]
	return ok
}
