package api

const (
	ReceiptTypeSales       = "Sales Receipt"
	ReceiptTypeWithholding = "Withholding Receipt"
	WithholdingTypeTWTH    = "TWTH"
)

type ReceiptRequest struct {
	ReceiptNumber       string               `json:"ReceiptNumber"`
	ReceiptType         string               `json:"ReceiptType"`
	Reason              string               `json:"Reason"`
	ReceiptCounter      int64                `json:"ReceiptCounter"`
	ReceiptDate         string               `json:"ReceiptDate"`
	ManualReceiptNumber string               `json:"ManualReceiptNumber,omitempty"`
	SourceSystemType    string               `json:"SourceSystemType"`
	SourceSystemNumber  string               `json:"SourceSystemNumber"`
	ReceiptCurrency     string               `json:"ReceiptCurrency"`
	SellerTIN           string               `json:"SellerTIN"`
	BuyerTIN            string               `json:"BuyerTIN,omitempty"`
	InvoiceDetail       ReceiptInvoiceDetail `json:"InvoiceDetail"`
	PaymentDetail       ReceiptPayment       `json:"PaymentDetail"`
}

type ReceiptInvoiceDetail struct {
	InvoiceIRN      string `json:"InvoiceIRN"`
	Currency        string `json:"Currency"`
	ExchangeRate    Number `json:"ExchangeRate"`
	PaymentCoverage string `json:"PaymentCoverage"`
	InvoiceTotal    Amount `json:"InvoiceTotal"`
	AmountPaid      Amount `json:"AmountPaid"`
}

type ReceiptPayment struct {
	Mode   string `json:"Mode"`
	Amount Amount `json:"Amount"`
}

type WithholdingRequest struct {
	ReceiptNumber       string                   `json:"ReceiptNumber"`
	ReceiptType         string                   `json:"ReceiptType"`
	Reason              string                   `json:"Reason"`
	ReceiptCounter      int64                    `json:"ReceiptCounter"`
	ReceiptDate         string                   `json:"ReceiptDate"`
	ManualReceiptNumber string                   `json:"ManualReceiptNumber,omitempty"`
	SourceSystemType    string                   `json:"SourceSystemType"`
	SourceSystemNumber  string                   `json:"SourceSystemNumber"`
	ReceiptCurrency     string                   `json:"ReceiptCurrency"`
	SellerTIN           string                   `json:"SellerTIN"`
	InvoiceDetail       WithholdingInvoiceDetail `json:"InvoiceDetail"`
	WithholdDetail      WithholdDetail           `json:"WithholdDetail"`
}

type WithholdingInvoiceDetail struct {
	InvoiceIRN   string `json:"InvoiceIRN"`
	Currency     string `json:"Currency"`
	ExchangeRate Number `json:"ExchangeRate"`
}

type WithholdDetail struct {
	Type              string `json:"Type"`
	Rate              Number `json:"Rate"`
	PreTaxAmount      Amount `json:"PreTaxAmount"`
	WithholdingAmount Amount `json:"WithholdingAmount"`
}

// ReceiptResult covers the differently named receipt reference fields the
// registry uses across receipt kinds.
type ReceiptResult struct {
	ReceiptNumber string `json:"ReceiptNumber"`
	RRN           string `json:"rrn"`
	ReceiptRef    string `json:"ReceiptRef"`
	QR            string `json:"qr"`
	ReceiptDate   string `json:"receiptDate"`
}

func (r *ReceiptResult) Reference() string {
	switch {
	case r.ReceiptNumber != "":
		return r.ReceiptNumber
	case r.RRN != "":
		return r.RRN
	default:
		return r.ReceiptRef
	}
}
