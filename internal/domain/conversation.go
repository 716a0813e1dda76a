package domain

import (
	"fmt"
	"time"
)

// DataKind discriminates the StateData variants when they are persisted.
type DataKind string

const (
	KindNone       DataKind = "none"
	KindEmail      DataKind = "email"
	KindCandidates DataKind = "candidates"
	KindResolved   DataKind = "resolved"
	KindCharges    DataKind = "charges"
	KindVoucher    DataKind = "voucher"
	KindDocuments  DataKind = "documents"
)

// StateData is the payload carried by a conversation in a given state. Only
// the variants listed for a state in allowedData can be attached to it.
type StateData interface {
	Kind() DataKind
}

// Match is a candidate tenant/property/user tuple produced by identity
// resolution. Path is the underlying directory record path and is unique.
type Match struct {
	TenantID     string `json:"tenantId"`
	PropertyID   string `json:"propertyId"`
	UserID       string `json:"userId"`
	PropertyName string `json:"propertyName,omitempty"`
	UserName     string `json:"userName,omitempty"`
	Path         string `json:"path"`
}

// Label is the human readable name used when listing candidates.
func (m Match) Label() string {
	if m.PropertyName != "" {
		return m.PropertyName
	}
	return m.PropertyID
}

// Identity is a fully resolved resident.
type Identity struct {
	Email string `json:"email"`
	Unit  string `json:"unit"`
	Match Match  `json:"match"`
}

type NoData struct{}

type EmailData struct {
	Email string `json:"email"`
}

type CandidatesData struct {
	Email      string  `json:"email"`
	Unit       string  `json:"unit"`
	Candidates []Match `json:"candidates"`
}

type ResolvedData struct {
	Identity Identity `json:"identity"`
}

type ChargesData struct {
	Identity Identity        `json:"identity"`
	Charges  []PendingCharge `json:"charges"`
}

type VoucherData struct {
	Identity  Identity `json:"identity"`
	ChargeIDs []string `json:"chargeIds"`
}

type DocumentsData struct {
	Identity  Identity        `json:"identity"`
	Documents []DocumentEntry `json:"documents"`
}

func (NoData) Kind() DataKind         { return KindNone }
func (EmailData) Kind() DataKind      { return KindEmail }
func (CandidatesData) Kind() DataKind { return KindCandidates }
func (ResolvedData) Kind() DataKind   { return KindResolved }
func (ChargesData) Kind() DataKind    { return KindCharges }
func (VoucherData) Kind() DataKind    { return KindVoucher }
func (DocumentsData) Kind() DataKind  { return KindDocuments }

var allowedData = map[State][]DataKind{
	StateInitial:       {KindNone},
	StateMenuSelection: {KindNone},

	StatePaymentAwaitingEmail:                {KindNone},
	StatePaymentAwaitingDepartment:           {KindEmail},
	StatePaymentAwaitingCondominiumSelection: {KindCandidates},
	StatePaymentAwaitingChargeSelection:      {KindCharges},
	StatePaymentAwaitingFile:                 {KindVoucher},

	StateDocumentsAwaitingEmail:                {KindNone},
	StateDocumentsAwaitingDepartment:           {KindEmail},
	StateDocumentsAwaitingCondominiumSelection: {KindCandidates},
	StateDocumentsAwaitingSelection:            {KindDocuments},

	StateAccountAwaitingEmail:                {KindNone},
	StateAccountAwaitingDepartment:           {KindEmail},
	StateAccountAwaitingCondominiumSelection: {KindCandidates},

	StateCompleted: {KindNone, KindResolved},
	StateError:     {KindNone, KindResolved},
}

// Accepts reports whether data of the given kind may be attached to s.
func (s State) Accepts(kind DataKind) bool {
	for _, k := range allowedData[s] {
		if k == kind {
			return true
		}
	}
	return false
}

// Conversation is the persisted context of one phone number.
type Conversation struct {
	Phone           string
	State           State
	Data            StateData
	Version         int64
	LastInteraction time.Time
	Persisted       bool
}

// NewConversation returns a fresh, not yet persisted INITIAL context.
func NewConversation(phone string) *Conversation {
	return &Conversation{
		Phone: phone,
		State: StateInitial,
		Data:  NoData{},
	}
}

// Set moves the conversation to state with data. Combinations outside the
// state's shape are rejected and leave the conversation untouched.
func (c *Conversation) Set(state State, data StateData) error {
	if data == nil {
		data = NoData{}
	}
	if !state.Valid() {
		return fmt.Errorf("domain: unknown state %q", state)
	}
	if !state.Accepts(data.Kind()) {
		return fmt.Errorf("domain: state %s does not accept %s data", state, data.Kind())
	}
	c.State = state
	c.Data = data
	return nil
}

// Reset returns the conversation to INITIAL and drops all collected data.
func (c *Conversation) Reset() {
	c.State = StateInitial
	c.Data = NoData{}
}

// Identity returns the resolved resident, if the current data carries one.
func (c *Conversation) Identity() (Identity, bool) {
	switch d := c.Data.(type) {
	case ResolvedData:
		return d.Identity, true
	case ChargesData:
		return d.Identity, true
	case VoucherData:
		return d.Identity, true
	case DocumentsData:
		return d.Identity, true
	}
	return Identity{}, false
}

// Attempt describes whatever identity input has been collected so far for a
// conversation that is not resolved yet.
type Attempt struct {
	Email       string   `json:"email,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	TenantIDs   []string `json:"tenantIds,omitempty"`
	PropertyIDs []string `json:"propertyIds,omitempty"`
}

// Attempted returns the collected, unresolved identity input.
func (c *Conversation) Attempted() Attempt {
	switch d := c.Data.(type) {
	case EmailData:
		return Attempt{Email: d.Email}
	case CandidatesData:
		a := Attempt{Email: d.Email, Unit: d.Unit}
		for _, m := range d.Candidates {
			a.TenantIDs = appendUnique(a.TenantIDs, m.TenantID)
			a.PropertyIDs = appendUnique(a.PropertyIDs, m.PropertyID)
		}
		return a
	}
	return Attempt{}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
