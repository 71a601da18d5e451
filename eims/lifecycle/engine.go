// Package lifecycle drives documents through the registry states:
// unregistered, sent, verified, rejected, cancelled and unknown.
package lifecycle

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alapierre/go-eims-client/eims"
	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/mutex"
	"github.com/alapierre/go-eims-client/eims/notify"
	"github.com/alapierre/go-eims-client/eims/payload"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.lifecycle")

// Registry is the part of *eims.Client the engine calls.
type Registry interface {
	Register(ctx context.Context, req *api.RegisterRequest) (*eims.Reply[api.RegisterResult], error)
	Verify(ctx context.Context, irn string) (*eims.Reply[api.VerifyResult], error)
	Cancel(ctx context.Context, req *api.CancelRequest) (*eims.Reply[api.CancelResult], error)
	Receipt(ctx context.Context, req *api.ReceiptRequest) (*eims.Reply[api.ReceiptResult], error)
	Withholding(ctx context.Context, req *api.WithholdingRequest) (*eims.Reply[api.ReceiptResult], error)
}

type Store interface {
	store.Documents
	store.LogSink
	store.Withholdings
}

type Engine struct {
	registry Registry
	store    Store
	builder  *payload.Builder
	notifier notify.Notifier
	locks    *mutex.KeyedMutex[string]
	now      func() time.Time
}

func NewEngine(registry Registry, st Store, builder *payload.Builder, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{
		registry: registry,
		store:    st,
		builder:  builder,
		notifier: notifier,
		locks:    &mutex.KeyedMutex[string]{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Locks returns the per-document lock table, shared with the bulk
// reconciler so callbacks and single operations do not interleave.
func (e *Engine) Locks() *mutex.KeyedMutex[string] {
	return e.locks
}

// Submit registers a document. A document that already holds an IRN is
// verified first and only resent when the registry no longer considers it
// live; a verified one fails with api.ErrResendBlocked.
func (e *Engine) Submit(ctx context.Context, id string) (*model.Document, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	doc, err := e.store.FindDocument(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "find document %s", id)
	}
	return e.submitLocked(ctx, doc)
}

// IssueCreditMemo registers a credit or debit memo against its original.
func (e *Engine) IssueCreditMemo(ctx context.Context, id string) (*model.Document, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	doc, err := e.store.FindDocument(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "find document %s", id)
	}
	if !isMemo(doc.Kind) {
		return nil, api.NewValidationError("kind", "document "+id+" is not a credit or debit memo")
	}
	return e.submitLocked(ctx, doc)
}

func isMemo(k model.Kind) bool {
	return k == model.KindCreditMemo || k == model.KindDebitMemo
}

func (e *Engine) submitLocked(ctx context.Context, doc *model.Document) (*model.Document, error) {

	var original *model.Document
	if isMemo(doc.Kind) {
		if doc.OriginalID == "" {
			return nil, api.NewValidationError("originalId", "memo does not reference an original document")
		}
		o, err := e.store.FindDocument(ctx, doc.OriginalID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, api.NewValidationError("originalId", "original document "+doc.OriginalID+" not found")
			}
			return nil, errors.Wrap(err, "find original document")
		}
		if o.Irn == "" {
			return nil, api.NewValidationError("original.irn", "original document is not registered")
		}
		original = o
	}

	if doc.Registered() {
		status, err := e.verifyLocked(ctx, doc)
		if err != nil {
			return nil, errors.Wrap(err, "verify before resend")
		}
		if !status.Resendable() {
			return nil, errors.Wrapf(api.ErrResendBlocked, "document %s is %s (irn %s)", doc.ID, status, doc.Irn)
		}
		logger.Infof("document %s is %s at the registry, resending", doc.ID, status)
		doc.ClearRegistration()
	}

	var (
		req *api.RegisterRequest
		err error
		op  = model.OpRegister
	)
	if original != nil {
		op = model.OpCreditMemo
		req, err = e.builder.BuildCreditMemo(ctx, doc, original)
	} else {
		req, err = e.builder.BuildSubmission(ctx, doc)
	}
	if err != nil {
		return nil, err
	}

	reply, err := e.registry.Register(ctx, req)
	if err != nil {
		return nil, e.failed(ctx, doc.ID, op, err)
	}

	reg := Registration{
		Irn:           reply.Body.Irn,
		AckDate:       reply.Body.AckDate,
		SignedInvoice: reply.Body.SignedInvoice,
		SignedQR:      reply.Body.SignedQR,
		Message:       reply.Message,
	}
	now := e.now()
	Apply(doc, model.StatusSent, reg, now)

	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "save registered document")
	}
	if err := e.store.AppendLog(ctx, LogEntry(doc, op, reg, reply.Raw, now)); err != nil {
		return nil, errors.Wrap(err, "append registry log")
	}

	logger.Infof("document %s registered, irn %s", doc.ID, doc.Irn)
	e.notify("document", func() error { return e.notifier.SendDocumentEmail(ctx, doc) })
	return doc, nil
}

// Verify refreshes the document state from the registry. A registry that
// does not know the IRN yields unknown, not an error.
func (e *Engine) Verify(ctx context.Context, id string) (model.Status, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	doc, err := e.store.FindDocument(ctx, id)
	if err != nil {
		return "", errors.Wrapf(err, "find document %s", id)
	}
	if !doc.Registered() {
		return "", api.NewValidationError("irn", "document "+id+" has no IRN")
	}
	return e.verifyLocked(ctx, doc)
}

func (e *Engine) verifyLocked(ctx context.Context, doc *model.Document) (model.Status, error) {

	reply, err := e.registry.Verify(ctx, doc.Irn)

	var (
		rej    *api.RejectionError
		status model.Status
		reg    Registration
		entry  *model.RegistryLogEntry
		raw    []byte
		cancel string
		now    = e.now()
	)
	switch {
	case err == nil:
		status = MapStatus(reply.Body.Status)
		reg = Registration{
			AckDate:       reply.Body.AckDate,
			SignedInvoice: reply.Body.SignedInvoice,
			SignedQR:      reply.Body.SignedQR,
			Message:       reply.Message,
		}
		raw = reply.Raw
		cancel = reply.Body.CancellationDate
	case errors.As(err, &rej) && notFound(rej):
		status = model.StatusUnknown
		reg = Registration{Message: rej.Message}
		raw = rej.Body
	default:
		return "", e.failed(ctx, doc.ID, model.OpVerify, err)
	}

	Apply(doc, status, reg, now)
	if status == model.StatusCancelled && doc.CancelledAt.IsZero() {
		if t, ok := api.ParseAckDate(cancel); ok {
			doc.CancelledAt = t
		}
	}

	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return "", errors.Wrap(err, "save verified document")
	}
	if err := e.store.UpsertDocumentLog(ctx, &model.DocumentLog{
		DocumentID: doc.ID,
		Irn:        doc.Irn,
		Status:     status,
		Message:    reg.Message,
		AckDate:    doc.AckDate,
		SignedQR:   doc.SignedQR,
		CheckedAt:  now,
	}); err != nil {
		return "", errors.Wrap(err, "upsert document log")
	}

	entry = LogEntry(doc, model.OpVerify, reg, raw, now)
	if rej != nil {
		entry.Outcome = model.OutcomeFailure
		entry.HTTPStatus = rej.HTTPStatus
		entry.StatusCode = rej.StatusCode
		entry.Error = rej.Error()
	}
	if err := e.store.AppendLog(ctx, entry); err != nil {
		return "", errors.Wrap(err, "append registry log")
	}

	logger.Debugf("document %s verified as %s", doc.ID, status)
	return status, nil
}

// notFound reports a verify rejection meaning the registry does not know
// the IRN. Other rejections leave the state as it is.
func notFound(rej *api.RejectionError) bool {
	if rej.HTTPStatus == http.StatusNotFound || rej.StatusCode == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(rej.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not_found")
}

// Cancel withdraws a sent or verified document.
func (e *Engine) Cancel(ctx context.Context, id, reasonCode, remark string) (*model.Document, error) {

	if !api.ValidReasonCode(reasonCode) {
		return nil, api.NewValidationError("reasonCode", "cancel reason must be one of 1, 2, 3, 4, got "+reasonCode)
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	doc, err := e.store.FindDocument(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "find document %s", id)
	}
	if !doc.Registered() || !doc.Status.Cancellable() {
		return nil, api.NewValidationError("status", "document "+id+" is "+string(doc.Status)+" and cannot be cancelled")
	}

	reply, err := e.registry.Cancel(ctx, &api.CancelRequest{Irn: doc.Irn, ReasonCode: reasonCode, Remark: remark})
	if err != nil {
		return nil, e.failed(ctx, doc.ID, model.OpCancel, err, func(entry *model.RegistryLogEntry) {
			entry.Irn = doc.Irn
			entry.CancelReason = reasonCode
			entry.CancelRemark = remark
		})
	}

	now := e.now()
	cancelledAt := now
	if t, ok := api.ParseAckDate(reply.Body.CancellationDate); ok {
		cancelledAt = t
	}
	message := reply.Body.Message
	if message == "" {
		message = reply.Message
	}

	doc.Status = model.StatusCancelled
	doc.CancelledAt = cancelledAt
	doc.CancelReason = reasonCode
	doc.CancelRemark = remark
	doc.CancelMessage = message
	doc.LastMessage = message
	doc.UpdatedAt = now

	if err := e.store.SaveDocument(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "save cancelled document")
	}

	entry := LogEntry(doc, model.OpCancel, Registration{Message: message}, reply.Raw, now)
	entry.CancelReason = reasonCode
	entry.CancelRemark = remark
	entry.CancelledAt = cancelledAt
	if err := e.store.AppendLog(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "append cancel log")
	}

	logger.Infof("document %s cancelled, irn %s", doc.ID, doc.Irn)
	e.notify("cancellation", func() error { return e.notifier.SendCancellationEmail(ctx, doc) })
	return doc, nil
}

// failed records the failure of a registry call and returns err. Signing and
// validation failures happen before anything is sent and are not logged.
func (e *Engine) failed(ctx context.Context, docID string, op model.Operation, err error, decorate ...func(*model.RegistryLogEntry)) error {

	if errors.Is(err, api.ErrSigning) || errors.Is(err, api.ErrValidation) {
		return err
	}

	entry := model.NewLogEntry(docID, op, model.OutcomeFailure)
	entry.CreatedAt = e.now()
	entry.Error = err.Error()

	var rej *api.RejectionError
	if errors.As(err, &rej) {
		entry.HTTPStatus = rej.HTTPStatus
		entry.StatusCode = rej.StatusCode
		entry.Message = rej.Message
		entry.RawResponse = rej.Body
	}
	var te *api.TransientError
	if errors.As(err, &te) {
		entry.HTTPStatus = te.StatusCode
	}
	for _, d := range decorate {
		d(entry)
	}

	if lerr := e.store.AppendLog(ctx, entry); lerr != nil {
		logger.Errorf("could not record %s failure of %s: %v", op, docID, lerr)
	}
	logger.Warnf("%s of %s failed: %v", op, docID, err)
	return err
}

func (e *Engine) notify(what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warnf("%s notification failed: %v", what, err)
	}
}
