package lifecycle

import (
	"strings"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/model"
)

// MapStatus maps a registry verify status onto the document state. Anything
// unrecognized is unknown, which keeps the document resendable.
func MapStatus(s string) model.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "ACTIVE", "VERIFIED":
		return model.StatusVerified
	case "C", "CANCELLED", "CANCELED":
		return model.StatusCancelled
	case "R", "REJECTED":
		return model.StatusRejected
	}
	return model.StatusUnknown
}

// MapCallbackStatus maps a bulk callback status letter. U is still pending
// at the registry: sent when an IRN was already assigned, unknown otherwise.
func MapCallbackStatus(s, irn string) model.Status {
	if strings.EqualFold(strings.TrimSpace(s), api.CallbackPending) {
		if irn != "" {
			return model.StatusSent
		}
		return model.StatusUnknown
	}
	return MapStatus(s)
}

// Registration carries the registry fields copied onto a document.
type Registration struct {
	Irn           string
	AckDate       string
	SignedInvoice string
	SignedQR      string
	Message       string
}

// Apply sets status and copies the non-empty registration fields.
func Apply(doc *model.Document, status model.Status, r Registration, now time.Time) {
	doc.Status = status
	if r.Irn != "" {
		doc.Irn = r.Irn
	}
	if t, ok := api.ParseAckDate(r.AckDate); ok {
		doc.AckDate = t
	}
	if r.SignedInvoice != "" {
		doc.SignedInvoice = r.SignedInvoice
	}
	if r.SignedQR != "" {
		doc.SignedQR = r.SignedQR
	}
	if r.Message != "" {
		doc.LastMessage = r.Message
	}
	doc.UpdatedAt = now
}

// LogEntry builds the success audit record of an applied registration.
func LogEntry(doc *model.Document, op model.Operation, r Registration, raw []byte, now time.Time) *model.RegistryLogEntry {
	e := model.NewLogEntry(doc.ID, op, model.OutcomeSuccess)
	e.CreatedAt = now
	e.Status = doc.Status
	e.Message = r.Message
	e.Irn = doc.Irn
	e.AckDate = doc.AckDate
	e.SignedInvoice = r.SignedInvoice
	e.SignedQR = r.SignedQR
	e.RawResponse = raw
	return e
}
