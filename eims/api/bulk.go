package api

type BulkRegisterRequest struct {
	CallbackURL string            `json:"CallbackUrl,omitempty"`
	Invoices    []RegisterRequest `json:"Invoices"`
}

type BulkRegisterResult struct {
	ConversationID string `json:"conversationId"`
}

// CallbackItem is one entry of an asynchronous bulk result delivery.
type CallbackItem struct {
	ConversationID string `json:"conversationId,omitempty"`
	DocumentNumber string `json:"documentNumber"`
	Status         string `json:"status"`
	Irn            string `json:"irn"`
	SignedInvoice  string `json:"signedInvoice"`
	SignedQR       string `json:"signedQR"`
	AckDate        string `json:"ackDate"`
}

// Bulk callback status letters.
const (
	CallbackAccepted  = "A"
	CallbackCancelled = "C"
	CallbackRejected  = "R"
	CallbackPending   = "U"
)

// Notification is an out-of-band delivery status event.
type Notification struct {
	Irn            string `json:"IRN"`
	Action         string `json:"Action"`
	InvoiceNumber  string `json:"InvoiceNumber"`
	Email          string `json:"Email"`
	Phone          string `json:"Phone,omitempty"`
	DeliveryStatus string `json:"DeliveryStatus"`
	Timestamp      string `json:"Timestamp"`
}
