package domain

import "time"

// PendingCharge is an unpaid charge as listed to the resident. Index is the
// 1-based position shown in the reply.
type PendingCharge struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Concept string `json:"concept"`
	Amount  int64  `json:"amount"`
}

// Charge is a billable obligation assigned to a resident. Amounts are in
// minor currency units.
type Charge struct {
	ID          string    `json:"id"`
	Concept     string    `json:"concept"`
	Amount      int64     `json:"amount"`
	Outstanding int64     `json:"outstanding"`
	Paid        bool      `json:"paid"`
	DueDate     time.Time `json:"dueDate"`
}

// Payment is funds applied by a resident. CreditBalance is the overpayment
// carried forward, CreditUsed the previously carried credit consumed.
type Payment struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"`
	CreditBalance int64     `json:"creditBalance"`
	CreditUsed    int64     `json:"creditUsed"`
	PaidAt        time.Time `json:"paidAt"`
	ChargeIDs     []string  `json:"chargeIds,omitempty"`
}

// VoucherStatusPendingReview is the status of every voucher received over chat.
const VoucherStatusPendingReview = "pending_review"

// Voucher records a proof of payment submitted by a resident.
type Voucher struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	PropertyID string    `json:"propertyId"`
	UserID     string    `json:"userId"`
	ChargeIDs  []string  `json:"chargeIds"`
	FileURL    string    `json:"fileUrl"`
	MimeType   string    `json:"mimeType"`
	Phone      string    `json:"phone"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Totals summarises a resident's account. All values are minor units.
type Totals struct {
	Charged       int64 `json:"charged"`
	Paid          int64 `json:"paid"`
	CreditBalance int64 `json:"creditBalance"`
	CreditUsed    int64 `json:"creditUsed"`
	Outstanding   int64 `json:"outstanding"`
}

// ComputeTotals aggregates charges and payments. The outstanding balance is
// charged - (paid + credit balance - credit used).
func ComputeTotals(charges []Charge, payments []Payment) Totals {
	var t Totals
	for _, c := range charges {
		t.Charged += c.Amount
	}
	for _, p := range payments {
		t.Paid += p.Amount
		t.CreditBalance += p.CreditBalance
		t.CreditUsed += p.CreditUsed
	}
	t.Outstanding = t.Charged - (t.Paid + t.CreditBalance - t.CreditUsed)
	return t
}

// Statement is the aggregate handed to the report renderer.
type Statement struct {
	Resident    Identity  `json:"resident"`
	Phone       string    `json:"phone"`
	Charges     []Charge  `json:"charges"`
	Payments    []Payment `json:"payments"`
	Totals      Totals    `json:"totals"`
	GeneratedAt time.Time `json:"generatedAt"`
}
