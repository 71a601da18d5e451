package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptDetails describes a payment received against a registered invoice.
// A zero Amount means the full document total.
type ReceiptDetails struct {
	Amount              decimal.Decimal
	PaymentMode         string
	Reason              string
	ManualReceiptNumber string
	ExchangeRate        decimal.Decimal
	ReceivedAt          time.Time
}

// WithholdingReceipt is a transaction withholding declared by the buyer
// against a registered invoice.
type WithholdingReceipt struct {
	ID                  string          `json:"id"`
	InvoiceIrn          string          `json:"invoiceIrn"`
	Currency            string          `json:"currency"`
	ExchangeRate        decimal.Decimal `json:"exchangeRate"`
	PreTaxAmount        decimal.Decimal `json:"preTaxAmount"`
	Rate                decimal.Decimal `json:"rate"`
	Reason              string          `json:"reason,omitempty"`
	ManualReceiptNumber string          `json:"manualReceiptNumber,omitempty"`
	SellerTIN           string          `json:"sellerTin"`
	ReceiptDate         time.Time       `json:"receiptDate"`
	NotifyEmail         string          `json:"notifyEmail,omitempty"`

	Sequence      int64  `json:"sequence,omitempty"`
	ReceiptNumber string `json:"receiptNumber,omitempty"`
	Status        Status `json:"status"`
	RRN           string `json:"rrn,omitempty"`
}

// DefaultWithholdingRate is the transaction withholding rate in percent.
var DefaultWithholdingRate = decimal.NewFromInt(3)
