package lifecycle

import (
	"context"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/calendar"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/payload"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/go-faster/errors"
)

// IssueReceipt registers a sales receipt for a payment on a verified document
// and returns its receipt ledger entry.
func (e *Engine) IssueReceipt(ctx context.Context, id string, details model.ReceiptDetails) (*model.RegistryLogEntry, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	doc, err := e.store.FindDocument(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "find document %s", id)
	}
	if doc.Status != model.StatusVerified {
		return nil, api.NewValidationError("status", "receipts need a verified document, "+id+" is "+string(doc.Status))
	}

	req, err := e.builder.BuildReceipt(ctx, doc, details)
	if err != nil {
		return nil, err
	}

	reply, err := e.registry.Receipt(ctx, req)
	if err != nil {
		return nil, e.failed(ctx, doc.ID, model.OpReceipt, err, func(entry *model.RegistryLogEntry) {
			entry.Irn = doc.Irn
			entry.ReceiptNumber = req.ReceiptNumber
			entry.ReceiptAmount = req.PaymentDetail.Amount.Decimal
		})
	}

	now := e.now()
	received := details.ReceivedAt
	if received.IsZero() {
		received = now
	}
	if t, ok := api.ParseAckDate(reply.Body.ReceiptDate); ok {
		received = t
	}

	number := reply.Body.Reference()
	if number == "" {
		number = req.ReceiptNumber
	}

	entry := LogEntry(doc, model.OpReceipt, Registration{Message: reply.Message, SignedQR: reply.Body.QR}, reply.Raw, now)
	entry.ReceiptNumber = number
	entry.ReceiptAmount = req.PaymentDetail.Amount.Decimal
	entry.ReceiptDate = received
	entry.EthiopianDate = calendar.FromGregorian(received.In(payload.Location)).String()

	if err := e.store.AppendLog(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "append receipt log")
	}

	logger.Infof("receipt %s issued for document %s", number, doc.ID)
	e.notify("receipt", func() error { return e.notifier.SendReceiptEmail(ctx, doc, entry) })
	return entry, nil
}

// SubmitWithholding registers a withholding receipt against the verified
// invoice named by its IRN.
func (e *Engine) SubmitWithholding(ctx context.Context, w *model.WithholdingReceipt) (*model.WithholdingReceipt, error) {

	if w.InvoiceIrn == "" {
		return nil, api.NewValidationError("invoiceIrn", "withholding needs the IRN of a registered invoice")
	}

	found, err := e.store.FindDocumentByIrn(ctx, w.InvoiceIrn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, api.NewValidationError("invoiceIrn", "no document with IRN "+w.InvoiceIrn)
		}
		return nil, errors.Wrap(err, "find invoice by irn")
	}

	unlock := e.locks.Lock(found.ID)
	defer unlock()

	// the lookup ran unlocked
	doc, err := e.store.FindDocument(ctx, found.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "find document %s", found.ID)
	}
	if doc.Irn != w.InvoiceIrn {
		return nil, api.NewValidationError("invoiceIrn", "document "+doc.ID+" no longer holds IRN "+w.InvoiceIrn)
	}

	if doc.Status != model.StatusVerified {
		return nil, api.NewValidationError("status", "withholding needs a verified invoice, "+doc.ID+" is "+string(doc.Status))
	}

	if w.ID == "" {
		w.ID = model.NewID()
	}
	if w.SellerTIN == "" {
		w.SellerTIN = doc.Seller.TIN
	}
	if w.Currency == "" {
		w.Currency = doc.Currency
	}
	if w.NotifyEmail == "" {
		w.NotifyEmail = doc.Seller.Email
	}
	w.Status = model.StatusUnregistered

	req, err := e.builder.BuildWithholding(ctx, w)
	if err != nil {
		return nil, err
	}

	reply, err := e.registry.Withholding(ctx, req)
	if err != nil {
		var rej *api.RejectionError
		if errors.As(err, &rej) {
			w.Status = model.StatusRejected
			if serr := e.store.SaveWithholding(ctx, w); serr != nil {
				logger.Errorf("could not save rejected withholding %s: %v", w.ID, serr)
			}
		}
		return nil, e.failed(ctx, doc.ID, model.OpWithholding, err, func(entry *model.RegistryLogEntry) {
			entry.Irn = w.InvoiceIrn
			entry.ReceiptNumber = w.ReceiptNumber
		})
	}

	now := e.now()
	w.RRN = reply.Body.Reference()
	w.Status = model.StatusSent

	if err := e.store.SaveWithholding(ctx, w); err != nil {
		return nil, errors.Wrap(err, "save withholding receipt")
	}

	entry := LogEntry(doc, model.OpWithholding, Registration{Message: reply.Message, SignedQR: reply.Body.QR}, reply.Raw, now)
	entry.Status = w.Status
	entry.ReceiptNumber = w.RRN
	entry.ReceiptAmount = req.WithholdDetail.WithholdingAmount.Decimal
	entry.ReceiptDate = w.ReceiptDate
	entry.EthiopianDate = calendar.FromGregorian(w.ReceiptDate.In(payload.Location)).String()
	if err := e.store.AppendLog(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "append withholding log")
	}

	logger.Infof("withholding %s submitted for irn %s, rrn %s", w.ReceiptNumber, w.InvoiceIrn, w.RRN)
	e.notify("withholding", func() error { return e.notifier.SendWithholdingEmail(ctx, w) })
	return w, nil
}
