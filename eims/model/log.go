package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Operation string

const (
	OpRegister     Operation = "register"
	OpVerify       Operation = "verify"
	OpCancel       Operation = "cancel"
	OpCreditMemo   Operation = "credit_memo"
	OpBulkSubmit   Operation = "bulk_submit"
	OpBulkCallback Operation = "bulk_callback"
	OpReceipt      Operation = "receipt"
	OpWithholding  Operation = "withholding"
)

type Ledger string

const (
	LedgerRegistry Ledger = "registry"
	LedgerCancel   Ledger = "cancel"
	LedgerReceipt  Ledger = "receipt"
)

func (o Operation) Ledger() Ledger {
	switch o {
	case OpCancel:
		return LedgerCancel
	case OpReceipt, OpWithholding:
		return LedgerReceipt
	}
	return LedgerRegistry
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// RegistryLogEntry is the audit record of one registry interaction.
type RegistryLogEntry struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"documentId,omitempty"`
	Operation      Operation `json:"operation"`
	Outcome        Outcome   `json:"outcome"`
	Status         Status    `json:"status,omitempty"`
	HTTPStatus     int       `json:"httpStatus,omitempty"`
	StatusCode     int       `json:"statusCode,omitempty"`
	Message        string    `json:"message,omitempty"`
	Error          string    `json:"error,omitempty"`
	Irn            string    `json:"irn,omitempty"`
	AckDate        time.Time `json:"ackDate,omitzero"`
	SignedInvoice  string    `json:"signedInvoice,omitempty"`
	SignedQR       string    `json:"signedQR,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	RawResponse    []byte    `json:"rawResponse,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	CancelReason string    `json:"cancelReason,omitempty"`
	CancelRemark string    `json:"cancelRemark,omitempty"`
	CancelledAt  time.Time `json:"cancelledAt,omitzero"`

	ReceiptNumber string          `json:"receiptNumber,omitempty"`
	ReceiptAmount decimal.Decimal `json:"receiptAmount"`
	ReceiptDate   time.Time       `json:"receiptDate,omitzero"`
	EthiopianDate string          `json:"ethiopianDate,omitempty"`
}

func NewLogEntry(documentID string, op Operation, outcome Outcome) *RegistryLogEntry {
	return &RegistryLogEntry{
		ID:         NewID(),
		DocumentID: documentID,
		Operation:  op,
		Outcome:    outcome,
		CreatedAt:  time.Now().UTC(),
	}
}

// DocumentLog is the single per-document row refreshed by every verify.
type DocumentLog struct {
	DocumentID string    `json:"documentId"`
	Irn        string    `json:"irn,omitempty"`
	Status     Status    `json:"status"`
	Message    string    `json:"message,omitempty"`
	AckDate    time.Time `json:"ackDate,omitzero"`
	SignedQR   string    `json:"signedQR,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// BulkMapping links a document number sent in a bulk batch to the document.
type BulkMapping struct {
	DocumentNumber string    `json:"documentNumber"`
	DocumentID     string    `json:"documentId"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type DeliveryStatus string

const (
	Delivered DeliveryStatus = "delivered"
	Failed    DeliveryStatus = "failed"
)

// NotificationLogEntry records one delivery status event of the registry
// notification channel.
type NotificationLogEntry struct {
	ID            string         `json:"id"`
	Irn           string         `json:"irn"`
	InvoiceNumber string         `json:"invoiceNumber,omitempty"`
	Action        string         `json:"action"`
	Channel       string         `json:"channel"`
	Recipient     string         `json:"recipient,omitempty"`
	Status        DeliveryStatus `json:"status"`
	EventAt       time.Time      `json:"eventAt,omitzero"`
	ReceivedAt    time.Time      `json:"receivedAt"`
	RawPayload    []byte         `json:"rawPayload,omitempty"`
}
