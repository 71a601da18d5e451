package api

// RegisterRequest is the invoice, credit memo and debit memo payload of the
// register endpoint.
type RegisterRequest struct {
	BuyerDetails     BuyerDetails     `json:"BuyerDetails"`
	DocumentDetails  DocumentDetails  `json:"DocumentDetails"`
	ItemList         []Item           `json:"ItemList"`
	PaymentDetails   PaymentDetails   `json:"PaymentDetails"`
	ReferenceDetails ReferenceDetails `json:"ReferenceDetails"`
	SellerDetails    SellerDetails    `json:"SellerDetails"`
	SourceSystem     SourceSystem     `json:"SourceSystem"`
	TransactionType  string           `json:"TransactionType"`
	ValueDetails     ValueDetails     `json:"ValueDetails"`
	Version          string           `json:"Version"`
}

type BuyerDetails struct {
	LegalName string `json:"LegalName"`
	IdType    string `json:"IdType,omitempty"`
	IdNumber  string `json:"IdNumber,omitempty"`
	Tin       string `json:"Tin,omitempty"`
	VatNumber string `json:"VatNumber,omitempty"`
	Email     string `json:"Email,omitempty"`
	Phone     string `json:"Phone,omitempty"`
	City      string `json:"City,omitempty"`
	Region    string `json:"Region,omitempty"`
	Wereda    string `json:"Wereda,omitempty"`
}

type DocumentDetails struct {
	DocumentNumber string `json:"DocumentNumber"`
	Date           string `json:"Date"`
	Type           string `json:"Type"`
	Reason         string `json:"Reason,omitempty"`
}

type Item struct {
	Discount           Amount `json:"Discount"`
	ExciseTaxValue     Amount `json:"ExciseTaxValue"`
	HarmonizationCode  string `json:"HarmonizationCode,omitempty"`
	ItemCode           string `json:"ItemCode"`
	LineNumber         int    `json:"LineNumber"`
	NatureOfSupplies   string `json:"NatureOfSupplies"`
	PreTaxValue        Amount `json:"PreTaxValue"`
	ProductDescription string `json:"ProductDescription"`
	Quantity           Number `json:"Quantity"`
	TaxAmount          Amount `json:"TaxAmount"`
	TaxCode            string `json:"TaxCode"`
	TotalLineAmount    Amount `json:"TotalLineAmount"`
	Unit               string `json:"Unit"`
	UnitPrice          Amount `json:"UnitPrice"`
	WithholdingValue   Amount `json:"WithholdingValue"`
}

type PaymentDetails struct {
	Mode        string `json:"Mode"`
	PaymentTerm string `json:"PaymentTerm"`
}

type ReferenceDetails struct {
	PreviousIrn     string `json:"PreviousIrn,omitempty"`
	RelatedDocument string `json:"RelatedDocument,omitempty"`
}

type SellerDetails struct {
	LegalName   string `json:"LegalName"`
	Tin         string `json:"Tin"`
	VatNumber   string `json:"VatNumber,omitempty"`
	Email       string `json:"Email,omitempty"`
	Phone       string `json:"Phone,omitempty"`
	City        string `json:"City,omitempty"`
	Region      string `json:"Region,omitempty"`
	HouseNumber string `json:"HouseNumber,omitempty"`
	Locality    string `json:"Locality,omitempty"`
	Wereda      string `json:"Wereda,omitempty"`
}

type SourceSystem struct {
	CashierName     string `json:"CashierName"`
	InvoiceCounter  int64  `json:"InvoiceCounter"`
	SalesPersonName string `json:"SalesPersonName"`
	SystemNumber    string `json:"SystemNumber"`
	SystemType      string `json:"SystemType"`
}

type ValueDetails struct {
	Discount                 Amount `json:"Discount"`
	ExciseValue              Amount `json:"ExciseValue"`
	IncomeWithholdValue      Amount `json:"IncomeWithholdValue"`
	InvoiceCurrency          string `json:"InvoiceCurrency"`
	TaxValue                 Amount `json:"TaxValue"`
	TotalValue               Amount `json:"TotalValue"`
	TransactionWithholdValue Amount `json:"TransactionWithholdValue"`
}

// RegisterResult is the body of a successful register answer.
type RegisterResult struct {
	DocumentNumber string `json:"documentNumber"`
	Irn            string `json:"irn"`
	AckDate        string `json:"ackDate"`
	SignedInvoice  string `json:"signedInvoice"`
	SignedQR       string `json:"signedQR"`
}
