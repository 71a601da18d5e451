package payload

import (
	"context"
	"strconv"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.payload")

// DateLayout is the registry document date format.
const DateLayout = "02-01-2006T15:04:05"

const Version = "1"

// Location registry dates are East Africa Time.
var Location = time.FixedZone("EAT", 3*60*60)

// Registry document type codes.
const (
	TypeInvoice    = "INV"
	TypeCreditMemo = "CRE"
	TypeDebitMemo  = "DEB"
)

type Sequencer interface {
	NextSequence(ctx context.Context, counter string) (int64, error)
}

// SourceSystem identifies the issuing point of sale to the registry.
type SourceSystem struct {
	SystemNumber    string
	SystemType      string
	CashierName     string
	SalesPersonName string
}

type Builder struct {
	seq    Sequencer
	source SourceSystem
	now    func() time.Time
}

func NewBuilder(seq Sequencer, source SourceSystem) *Builder {
	if source.SystemType == "" {
		source.SystemType = "POS"
	}
	return &Builder{seq: seq, source: source, now: time.Now}
}

func InvoiceCounter(tin string) string     { return "invoice/" + tin }
func ReceiptCounter(tin string) string     { return "receipt/" + tin }
func WithholdingCounter(tin string) string { return "withholding/" + tin }

func FormatDate(t time.Time) string {
	return t.In(Location).Format(DateLayout)
}

// BuildSubmission builds the register payload of an invoice and stamps the
// computed totals and the next sequence number on doc.
func (b *Builder) BuildSubmission(ctx context.Context, doc *model.Document) (*api.RegisterRequest, error) {
	if doc.Kind != model.KindInvoice {
		return nil, api.NewValidationError("kind", "only invoices are submitted directly, memos need their original document")
	}
	return b.build(ctx, doc, TypeInvoice, nil)
}

// BuildCreditMemo builds a correction of original. doc carries the corrected
// contents; a lower total makes it a credit memo, a higher one a debit memo.
func (b *Builder) BuildCreditMemo(ctx context.Context, doc, original *model.Document) (*api.RegisterRequest, error) {

	if original == nil || original.Irn == "" {
		return nil, api.NewValidationError("original.irn", "original document is not registered")
	}

	totals, _ := ComputeTotals(doc.Lines)
	var docType string
	switch totals.Total.Cmp(original.Total) {
	case -1:
		docType = TypeCreditMemo
	case 1:
		docType = TypeDebitMemo
	default:
		return nil, api.NewValidationError("total", "memo total equals the original total, nothing to correct")
	}

	return b.build(ctx, doc, docType, original)
}

func (b *Builder) build(ctx context.Context, doc *model.Document, docType string, original *model.Document) (*api.RegisterRequest, error) {

	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	txType, _ := TransactionType(doc.Buyer)

	totals, values := ComputeTotals(doc.Lines)

	items := make([]api.Item, len(doc.Lines))
	for i, l := range doc.Lines {
		v := values[i]
		code := l.ItemCode
		if code == "" {
			code = "ITEM-" + strconv.Itoa(i+1)
		}
		nature := l.NatureOfSupplies
		if nature == "" {
			nature = "goods"
		}
		items[i] = api.Item{
			Discount:           api.NewAmount(v.Discount),
			ExciseTaxValue:     api.NewAmount(v.Excise),
			HarmonizationCode:  HarmonizationCode(l.ExciseRate),
			ItemCode:           code,
			LineNumber:         i + 1,
			NatureOfSupplies:   nature,
			PreTaxValue:        api.NewAmount(v.PreTax),
			ProductDescription: l.Description,
			Quantity:           api.NewNumber(l.Quantity),
			TaxAmount:          api.NewAmount(v.Tax),
			TaxCode:            TaxCode(l),
			TotalLineAmount:    api.NewAmount(v.Total),
			Unit:               Unit(l.Unit),
			UnitPrice:          api.NewAmount(l.UnitPrice),
			WithholdingValue:   api.NewAmount(v.Withholding),
		}
	}

	seq, err := b.seq.NextSequence(ctx, InvoiceCounter(doc.Seller.TIN))
	if err != nil {
		return nil, errors.Wrap(err, "next document sequence")
	}
	number := strconv.FormatInt(seq, 10)

	doc.Sequence = seq
	doc.DocumentNumber = number
	switch docType {
	case TypeCreditMemo:
		doc.Kind = model.KindCreditMemo
	case TypeDebitMemo:
		doc.Kind = model.KindDebitMemo
	}
	if original != nil {
		doc.OriginalID = original.ID
		doc.PreviousIrn = original.Irn
	}
	doc.Total = totals.Total
	doc.TaxTotal = totals.Tax

	issued := doc.IssuedAt
	if issued.IsZero() {
		issued = b.now()
	}

	req := &api.RegisterRequest{
		BuyerDetails: buyerDetails(doc.Buyer),
		DocumentDetails: api.DocumentDetails{
			DocumentNumber: number,
			Date:           FormatDate(issued),
			Type:           docType,
			Reason:         reason(doc, docType),
		},
		ItemList: items,
		PaymentDetails: api.PaymentDetails{
			Mode:        orDefault(doc.PaymentMode, "CASH"),
			PaymentTerm: orDefault(doc.PaymentTerm, "IMMEDIATE"),
		},
		SellerDetails: api.SellerDetails{
			LegalName:   doc.Seller.LegalName,
			Tin:         doc.Seller.TIN,
			VatNumber:   doc.Seller.VatNumber,
			Email:       doc.Seller.Email,
			Phone:       doc.Seller.Phone,
			City:        doc.Seller.City,
			Region:      orDefault(doc.Seller.Region, "AA"),
			HouseNumber: doc.Seller.HouseNumber,
			Locality:    doc.Seller.Locality,
			Wereda:      orDefault(doc.Seller.Wereda, "01"),
		},
		SourceSystem: api.SourceSystem{
			CashierName:     orDefault(doc.CashierName, b.source.CashierName),
			InvoiceCounter:  seq,
			SalesPersonName: orDefault(doc.SalesPersonName, b.source.SalesPersonName),
			SystemNumber:    b.source.SystemNumber,
			SystemType:      b.source.SystemType,
		},
		TransactionType: txType,
		ValueDetails: api.ValueDetails{
			Discount:                 api.NewAmount(totals.Discount),
			ExciseValue:              api.NewAmount(totals.Excise),
			IncomeWithholdValue:      api.NewAmount(decimal.Zero),
			InvoiceCurrency:          orDefault(doc.Currency, "ETB"),
			TaxValue:                 api.NewAmount(totals.Tax),
			TotalValue:               api.NewAmount(totals.Total),
			TransactionWithholdValue: api.NewAmount(totals.Withholding),
		},
		Version: Version,
	}

	if original != nil {
		req.ReferenceDetails = api.ReferenceDetails{
			PreviousIrn:     original.Irn,
			RelatedDocument: original.DocumentNumber,
		}
	}

	logger.Debugf("built %s payload %s for document %s, total %s", docType, number, doc.ID, totals.Total.StringFixed(2))
	return req, nil
}

func buyerDetails(p model.Party) api.BuyerDetails {
	idType := p.IDType
	if idType == "" && p.IDNumber != "" {
		idType = "KID"
	}
	return api.BuyerDetails{
		LegalName: p.LegalName,
		IdType:    idType,
		IdNumber:  p.IDNumber,
		Tin:       p.TIN,
		VatNumber: p.VatNumber,
		Email:     p.Email,
		Phone:     p.Phone,
		City:      p.City,
		Region:    p.Region,
		Wereda:    p.Wereda,
	}
}

func reason(doc *model.Document, docType string) string {
	if doc.Reason != "" {
		return doc.Reason
	}
	switch docType {
	case TypeCreditMemo:
		return "Credit note"
	case TypeDebitMemo:
		return "Debit note"
	}
	return "Sale"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
