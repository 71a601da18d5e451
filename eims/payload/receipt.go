package payload

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// BuildReceipt builds a sales receipt for a payment against a registered
// document. A zero amount pays the document total.
func (b *Builder) BuildReceipt(ctx context.Context, doc *model.Document, details model.ReceiptDetails) (*api.ReceiptRequest, error) {

	if doc.Irn == "" {
		return nil, api.NewValidationError("irn", "receipts need a registered document")
	}
	if !validTIN(doc.Seller.TIN) {
		return nil, api.NewValidationError("seller.tin", fmt.Sprintf("seller TIN must be 10 digits, got %q", doc.Seller.TIN))
	}

	amount := details.Amount
	if amount.IsZero() {
		amount = doc.Total
	}
	if !amount.IsPositive() {
		return nil, api.NewValidationError("amount", "receipt amount must be positive")
	}
	if amount.GreaterThan(doc.Total) {
		return nil, api.NewValidationError("amount", "receipt amount exceeds the document total "+doc.Total.StringFixed(2))
	}

	coverage := "FULL"
	if amount.LessThan(doc.Total) {
		coverage = "PARTIAL"
	}

	received := details.ReceivedAt
	if received.IsZero() {
		received = b.now()
	}

	seq, err := b.seq.NextSequence(ctx, ReceiptCounter(doc.Seller.TIN))
	if err != nil {
		return nil, errors.Wrap(err, "next receipt sequence")
	}

	currency := orDefault(doc.Currency, "ETB")
	mode := orDefault(details.PaymentMode, orDefault(doc.PaymentMode, "CASH"))

	return &api.ReceiptRequest{
		ReceiptNumber:       strconv.FormatInt(seq, 10),
		ReceiptType:         api.ReceiptTypeSales,
		Reason:              orDefault(details.Reason, "Payment"),
		ReceiptCounter:      seq,
		ReceiptDate:         FormatDate(received),
		ManualReceiptNumber: details.ManualReceiptNumber,
		SourceSystemType:    b.source.SystemType,
		SourceSystemNumber:  b.source.SystemNumber,
		ReceiptCurrency:     currency,
		SellerTIN:           doc.Seller.TIN,
		BuyerTIN:            doc.Buyer.TIN,
		InvoiceDetail: api.ReceiptInvoiceDetail{
			InvoiceIRN:      doc.Irn,
			Currency:        currency,
			ExchangeRate:    api.NewNumber(exchangeRate(details.ExchangeRate)),
			PaymentCoverage: coverage,
			InvoiceTotal:    api.NewAmount(doc.Total),
			AmountPaid:      api.NewAmount(amount),
		},
		PaymentDetail: api.ReceiptPayment{
			Mode:   mode,
			Amount: api.NewAmount(amount),
		},
	}, nil
}

// BuildWithholding builds a transaction withholding receipt and stamps the
// sequence and receipt number on r.
func (b *Builder) BuildWithholding(ctx context.Context, r *model.WithholdingReceipt) (*api.WithholdingRequest, error) {

	if r.InvoiceIrn == "" {
		return nil, api.NewValidationError("invoiceIrn", "withholding needs the IRN of a registered invoice")
	}
	if !validTIN(r.SellerTIN) {
		return nil, api.NewValidationError("sellerTin", fmt.Sprintf("seller TIN must be 10 digits, got %q", r.SellerTIN))
	}
	if !r.PreTaxAmount.IsPositive() {
		return nil, api.NewValidationError("preTaxAmount", "pre-tax amount must be positive")
	}

	rate := r.Rate
	if rate.IsZero() {
		rate = model.DefaultWithholdingRate
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return nil, api.NewValidationError("rate", "withholding rate must be between 0 and 100")
	}

	date := r.ReceiptDate
	if date.IsZero() {
		date = b.now()
	}

	seq, err := b.seq.NextSequence(ctx, WithholdingCounter(r.SellerTIN))
	if err != nil {
		return nil, errors.Wrap(err, "next withholding sequence")
	}
	number := strconv.FormatInt(seq, 10)

	r.Rate = rate
	r.ReceiptDate = date
	r.Sequence = seq
	r.ReceiptNumber = number
	r.Currency = orDefault(r.Currency, "ETB")

	return &api.WithholdingRequest{
		ReceiptNumber:       number,
		ReceiptType:         api.ReceiptTypeWithholding,
		Reason:              orDefault(r.Reason, "Withholding"),
		ReceiptCounter:      seq,
		ReceiptDate:         FormatDate(date),
		ManualReceiptNumber: r.ManualReceiptNumber,
		SourceSystemType:    b.source.SystemType,
		SourceSystemNumber:  b.source.SystemNumber,
		ReceiptCurrency:     r.Currency,
		SellerTIN:           r.SellerTIN,
		InvoiceDetail: api.WithholdingInvoiceDetail{
			InvoiceIRN:   r.InvoiceIrn,
			Currency:     r.Currency,
			ExchangeRate: api.NewNumber(exchangeRate(r.ExchangeRate)),
		},
		WithholdDetail: api.WithholdDetail{
			Type:              api.WithholdingTypeTWTH,
			Rate:              api.NewNumber(rate),
			PreTaxAmount:      api.NewAmount(r.PreTaxAmount),
			WithholdingAmount: api.NewAmount(WithholdingAmount(r.PreTaxAmount, rate)),
		},
	}, nil
}

func WithholdingAmount(preTax, rate decimal.Decimal) decimal.Decimal {
	return percent(preTax, rate)
}

func exchangeRate(r decimal.Decimal) decimal.Decimal {
	if r.IsPositive() {
		return r
	}
	return decimal.NewFromInt(1)
}
