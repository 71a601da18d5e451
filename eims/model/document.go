package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindInvoice     Kind = "invoice"
	KindCreditMemo  Kind = "credit_memo"
	KindDebitMemo   Kind = "debit_memo"
	KindReceipt     Kind = "receipt"
	KindWithholding Kind = "withholding"
)

// Status is the registry state of a document.
type Status string

const (
	StatusUnregistered Status = "unregistered"
	StatusSent         Status = "sent"
	StatusVerified     Status = "verified"
	StatusRejected     Status = "rejected"
	StatusCancelled    Status = "cancelled"
	StatusUnknown      Status = "unknown"
)

// Resendable reports whether a verify outcome allows submitting again.
func (s Status) Resendable() bool {
	switch s {
	case StatusCancelled, StatusRejected, StatusUnknown:
		return true
	}
	return false
}

func (s Status) Cancellable() bool {
	return s == StatusSent || s == StatusVerified
}

type PartyKind string

const (
	Organization PartyKind = "organization"
	Individual   PartyKind = "individual"
)

type Party struct {
	Kind        PartyKind `json:"kind"`
	LegalName   string    `json:"legalName"`
	TIN         string    `json:"tin,omitempty"`
	VatNumber   string    `json:"vatNumber,omitempty"`
	IDType      string    `json:"idType,omitempty"`
	IDNumber    string    `json:"idNumber,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	City        string    `json:"city,omitempty"`
	Region      string    `json:"region,omitempty"`
	Wereda      string    `json:"wereda,omitempty"`
	Locality    string    `json:"locality,omitempty"`
	HouseNumber string    `json:"houseNumber,omitempty"`
}

type LineItem struct {
	ItemCode         string           `json:"itemCode,omitempty"`
	Description      string           `json:"description"`
	Unit             string           `json:"unit,omitempty"`
	NatureOfSupplies string           `json:"natureOfSupplies,omitempty"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitPrice        decimal.Decimal  `json:"unitPrice"`
	DiscountPercent  decimal.Decimal  `json:"discountPercent"`
	TaxRate          decimal.Decimal  `json:"taxRate"`
	TaxDescription   string           `json:"taxDescription,omitempty"`
	ExciseRate       *decimal.Decimal `json:"exciseRate,omitempty"`
	Withholding      bool             `json:"withholding,omitempty"`
}

// Document is an invoice, credit or debit memo. Receipts and withholding
// receipts reference a registered document by its IRN.
type Document struct {
	ID              string          `json:"id"`
	Kind            Kind            `json:"kind"`
	Number          string          `json:"number"`
	IssuedAt        time.Time       `json:"issuedAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Currency        string          `json:"currency"`
	Total           decimal.Decimal `json:"total"`
	TaxTotal        decimal.Decimal `json:"taxTotal"`
	Seller          Party           `json:"seller"`
	Buyer           Party           `json:"buyer"`
	Lines           []LineItem      `json:"lines"`
	PaymentMode     string          `json:"paymentMode,omitempty"`
	PaymentTerm     string          `json:"paymentTerm,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	CashierName     string          `json:"cashierName,omitempty"`
	SalesPersonName string          `json:"salesPersonName,omitempty"`

	// OriginalID links a credit or debit memo to the document it corrects.
	OriginalID  string `json:"originalId,omitempty"`
	PreviousIrn string `json:"previousIrn,omitempty"`

	// Stamped by the payload builder before signing.
	Sequence       int64  `json:"sequence,omitempty"`
	DocumentNumber string `json:"documentNumber,omitempty"`

	Status        Status    `json:"status"`
	Irn           string    `json:"irn,omitempty"`
	AckDate       time.Time `json:"ackDate,omitzero"`
	SignedInvoice string    `json:"signedInvoice,omitempty"`
	SignedQR      string    `json:"signedQR,omitempty"`
	LastMessage   string    `json:"lastMessage,omitempty"`

	CancelledAt   time.Time `json:"cancelledAt,omitzero"`
	CancelReason  string    `json:"cancelReason,omitempty"`
	CancelRemark  string    `json:"cancelRemark,omitempty"`
	CancelMessage string    `json:"cancelMessage,omitempty"`
}

func NewID() string {
	return uuid.NewString()
}

// NewDocument returns an unregistered document of the given kind.
func NewDocument(kind Kind) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:        NewID(),
		Kind:      kind,
		IssuedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
		Currency:  "ETB",
		Status:    StatusUnregistered,
	}
}

func (d *Document) Registered() bool {
	return d.Irn != ""
}

// ClearRegistration forgets a previous registration before a resend.
func (d *Document) ClearRegistration() {
	d.Irn = ""
	d.AckDate = time.Time{}
	d.SignedInvoice = ""
	d.SignedQR = ""
	d.Status = StatusUnregistered
}

func (d *Document) Clone() *Document {
	c := *d
	c.Lines = append([]LineItem(nil), d.Lines...)
	return &c
}
