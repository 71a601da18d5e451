package api

type VerifyRequest struct {
	Irn string `json:"irn"`
}

// VerifyResult holds the fields of a verify answer the client cares about;
// everything else in the body is ignored.
type VerifyResult struct {
	Irn              string `json:"irn"`
	Status           string `json:"status"`
	DocumentNumber   string `json:"documentNumber"`
	AckDate          string `json:"ackDate"`
	SignedInvoice    string `json:"signedInvoice"`
	SignedQR         string `json:"signedQR"`
	CancellationDate string `json:"cancellationDate"`
}
