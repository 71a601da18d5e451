// Package batch submits documents in bulk and reconciles the asynchronous
// results the registry delivers to the callback endpoint.
package batch

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/alapierre/go-eims-client/eims"
	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/lifecycle"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/mutex"
	"github.com/alapierre/go-eims-client/eims/payload"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.batch")

type Registry interface {
	BulkRegister(ctx context.Context, req *api.BulkRegisterRequest) (*eims.Reply[api.BulkRegisterResult], error)
}

type Store interface {
	store.Atomic
	store.Documents
	store.LogSink
	store.Mappings
}

type Reconciler struct {
	registry    Registry
	store       Store
	builder     *payload.Builder
	locks       *mutex.KeyedMutex[string]
	callbackURL string
	now         func() time.Time
}

// NewReconciler locks may be nil; pass Engine.Locks() to serialize callbacks
// with single document operations.
func NewReconciler(registry Registry, st Store, builder *payload.Builder, locks *mutex.KeyedMutex[string], callbackURL string) *Reconciler {
	if locks == nil {
		locks = &mutex.KeyedMutex[string]{}
	}
	return &Reconciler{
		registry:    registry,
		store:       st,
		builder:     builder,
		locks:       locks,
		callbackURL: callbackURL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitBatch posts the documents as one bulk registration and returns the
// registry conversation id. Numbered documents and their mappings are
// stored before the post, so a callback arriving early finds both; after
// the post only log entries are written. Mappings are removed again when
// the post fails.
func (r *Reconciler) SubmitBatch(ctx context.Context, ids []string) (string, error) {

	if len(ids) == 0 {
		return "", api.NewValidationError("documents", "empty batch")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return "", api.NewValidationError("documents", "document "+id+" is listed twice")
		}
		seen[id] = struct{}{}
	}

	docs, req, err := r.prepare(ctx, ids)
	if err != nil {
		return "", err
	}

	now := r.now()
	reply, err := r.registry.BulkRegister(ctx, req)
	if err != nil {
		r.rollback(ctx, docs)
		r.logAll(ctx, docs, func(doc *model.Document) *model.RegistryLogEntry {
			entry := model.NewLogEntry(doc.ID, model.OpBulkSubmit, model.OutcomeFailure)
			entry.CreatedAt = now
			entry.Error = err.Error()
			var rej *api.RejectionError
			if errors.As(err, &rej) {
				entry.HTTPStatus = rej.HTTPStatus
				entry.StatusCode = rej.StatusCode
				entry.Message = rej.Message
				entry.RawResponse = rej.Body
			}
			return entry
		})
		return "", err
	}

	conversation := reply.Body.ConversationID
	r.logAll(ctx, docs, func(doc *model.Document) *model.RegistryLogEntry {
		entry := model.NewLogEntry(doc.ID, model.OpBulkSubmit, model.OutcomeSuccess)
		entry.CreatedAt = now
		entry.Status = doc.Status
		entry.HTTPStatus = reply.HTTPStatus
		entry.StatusCode = reply.StatusCode
		entry.Message = reply.Message
		entry.ConversationID = conversation
		entry.RawResponse = reply.Raw
		return entry
	})

	logger.Infof("bulk batch of %d documents accepted, conversation %s", len(docs), conversation)
	return conversation, nil
}

// prepare numbers the documents under their locks and stores them with
// their mappings in one unit. Locks are taken in id order and released
// before the post, since the callback takes them too.
func (r *Reconciler) prepare(ctx context.Context, ids []string) ([]*model.Document, *api.BulkRegisterRequest, error) {

	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)
	for _, id := range ordered {
		unlock := r.locks.Lock(id)
		defer unlock()
	}

	docs := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := r.store.FindDocument(ctx, id)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "find document %s", id)
		}
		if doc.Registered() {
			return nil, nil, api.NewValidationError("irn", "document "+id+" already holds an IRN, use single submit")
		}
		docs = append(docs, doc)
	}

	req := &api.BulkRegisterRequest{CallbackURL: r.callbackURL}
	for _, doc := range docs {
		p, err := r.builder.BuildSubmission(ctx, doc)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "document %s", doc.ID)
		}
		req.Invoices = append(req.Invoices, *p)
	}

	now := r.now()
	err := r.store.Atomically(ctx, func(ctx context.Context, tx store.Store) error {
		for _, doc := range docs {
			doc.UpdatedAt = now
			if err := tx.SaveDocument(ctx, doc); err != nil {
				return errors.Wrapf(err, "save document %s", doc.ID)
			}
			if err := tx.SaveMapping(ctx, &model.BulkMapping{
				DocumentNumber: doc.DocumentNumber,
				DocumentID:     doc.ID,
				CreatedAt:      now,
			}); err != nil {
				return errors.Wrap(err, "save bulk mapping")
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return docs, req, nil
}

func (r *Reconciler) rollback(ctx context.Context, docs []*model.Document) {
	ctx = context.WithoutCancel(ctx)
	for _, doc := range docs {
		if err := r.store.DeleteMapping(ctx, doc.DocumentNumber); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Errorf("could not remove mapping %s: %v", doc.DocumentNumber, err)
		}
	}
}

func (r *Reconciler) logAll(ctx context.Context, docs []*model.Document, build func(*model.Document) *model.RegistryLogEntry) {
	for _, doc := range docs {
		if err := r.store.AppendLog(ctx, build(doc)); err != nil {
			logger.Errorf("could not record bulk log of %s: %v", doc.ID, err)
		}
	}
}

// CallbackResult lists the document numbers that matched a mapping.
type CallbackResult struct {
	Count     int
	Documents []string
	Missed    []string
}

// ProcessCallback applies a bulk result delivery. Each mapping is taken
// atomically, so a redelivered batch matches nothing the second time.
// Unmatched items are skipped; only malformed input is an error.
func (r *Reconciler) ProcessCallback(ctx context.Context, raw []byte) (*CallbackResult, error) {

	items, err := DecodeCallback(raw)
	if err != nil {
		return nil, err
	}

	res := &CallbackResult{Documents: []string{}}
	for _, it := range items {
		ok, err := r.applyItem(ctx, it)
		if err != nil {
			return res, err
		}
		number := strings.TrimSpace(it.Item.DocumentNumber)
		if ok {
			res.Documents = append(res.Documents, number)
		} else {
			res.Missed = append(res.Missed, number)
		}
	}
	res.Count = len(res.Documents)

	logger.Infof("bulk callback: %d processed, %d unmatched", res.Count, len(res.Missed))
	return res, nil
}

// errMappingMoved means the mapping was re-saved for another document
// between lookup and take.
var errMappingMoved = errors.New("bulk mapping moved to another document")

// applyItem locks the mapped document, then takes the mapping and applies
// the result in one unit; a failed write puts the mapping back so the
// redelivered callback matches again.
func (r *Reconciler) applyItem(ctx context.Context, it RawItem) (bool, error) {

	number := strings.TrimSpace(it.Item.DocumentNumber)
	if number == "" {
		logger.Warn(errors.Wrap(api.ErrReconciliationMiss, "callback item without document number"))
		return false, nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		m, err := r.store.FindMapping(ctx, number)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn(errors.Wrapf(api.ErrReconciliationMiss, "document number %s", number))
				return false, nil
			}
			return false, errors.Wrapf(err, "find mapping %s", number)
		}

		matched, err := r.applyLocked(ctx, m.DocumentID, it)
		if errors.Is(err, errMappingMoved) {
			continue
		}
		return matched, err
	}
	return false, errors.Wrapf(errMappingMoved, "document number %s", number)
}

func (r *Reconciler) applyLocked(ctx context.Context, documentID string, it RawItem) (bool, error) {

	unlock := r.locks.Lock(documentID)
	defer unlock()

	number := strings.TrimSpace(it.Item.DocumentNumber)
	var matched bool

	err := r.store.Atomically(ctx, func(ctx context.Context, tx store.Store) error {
		matched = false

		m, err := tx.TakeMapping(ctx, number)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn(errors.Wrapf(api.ErrReconciliationMiss, "document number %s", number))
				return nil
			}
			return errors.Wrapf(err, "take mapping %s", number)
		}
		if m.DocumentID != documentID {
			return errMappingMoved
		}

		doc, err := tx.FindDocument(ctx, m.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warnf("mapping %s points at missing document %s", number, m.DocumentID)
				return nil
			}
			return errors.Wrapf(err, "find document %s", m.DocumentID)
		}

		now := r.now()
		status := lifecycle.MapCallbackStatus(it.Item.Status, it.Item.Irn)
		reg := lifecycle.Registration{
			Irn:           it.Item.Irn,
			AckDate:       it.Item.AckDate,
			SignedInvoice: it.Item.SignedInvoice,
			SignedQR:      it.Item.SignedQR,
			Message:       "bulk callback status " + it.Item.Status,
		}
		lifecycle.Apply(doc, status, reg, now)

		if err := tx.SaveDocument(ctx, doc); err != nil {
			return errors.Wrapf(err, "save document %s", doc.ID)
		}
		if err := tx.UpsertDocumentLog(ctx, &model.DocumentLog{
			DocumentID: doc.ID,
			Irn:        doc.Irn,
			Status:     status,
			Message:    reg.Message,
			AckDate:    doc.AckDate,
			SignedQR:   doc.SignedQR,
			CheckedAt:  now,
		}); err != nil {
			return errors.Wrap(err, "upsert document log")
		}

		entry := lifecycle.LogEntry(doc, model.OpBulkCallback, reg, it.Raw, now)
		entry.ConversationID = it.Item.ConversationID
		if entry.ConversationID == "" {
			entry.ConversationID = m.ConversationID
		}
		if err := tx.AppendLog(ctx, entry); err != nil {
			return errors.Wrap(err, "append callback log")
		}

		logger.Debugf("document %s (%s) is %s after bulk callback", doc.ID, number, status)
		matched = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// SweepStale removes mappings older than ttl whose callback never came.
func (r *Reconciler) SweepStale(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := r.store.DeleteMappingsBefore(ctx, r.now().Add(-ttl))
	if err != nil {
		return 0, errors.Wrap(err, "sweep bulk mappings")
	}
	if n > 0 {
		logger.Infof("removed %d stale bulk mappings older than %s", n, ttl)
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval, ttl time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.SweepStale(ctx, ttl); err != nil {
				logger.Warnf("mapping sweep failed: %v", err)
			}
		}
	}
}
