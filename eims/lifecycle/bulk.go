package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// CancelRequest names one document of a bulk cancellation.
type CancelRequest struct {
	DocumentID string
	ReasonCode string
	Remark     string
}

type BulkCancelResult struct {
	Cancelled []string
	// Skipped documents are not verified or have no IRN.
	Skipped []string
	Failed  map[string]error
}

// bulkCancelParallelism bounds concurrent cancel calls.
const bulkCancelParallelism = 4

// BulkCancel cancels every verified document of reqs with its own reason.
// Failures are collected per document, one does not stop the others.
func (e *Engine) BulkCancel(ctx context.Context, reqs []CancelRequest) (*BulkCancelResult, error) {

	res := &BulkCancelResult{Failed: make(map[string]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkCancelParallelism)

	for _, r := range reqs {
		g.Go(func() error {
			doc, err := e.store.FindDocument(gctx, r.DocumentID)
			if err != nil {
				mu.Lock()
				res.Failed[r.DocumentID] = err
				mu.Unlock()
				return nil
			}
			if !doc.Registered() || doc.Status != model.StatusVerified {
				mu.Lock()
				res.Skipped = append(res.Skipped, r.DocumentID)
				mu.Unlock()
				return nil
			}

			_, err = e.Cancel(gctx, r.DocumentID, r.ReasonCode, r.Remark)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[r.DocumentID] = err
				return nil
			}
			res.Cancelled = append(res.Cancelled, r.DocumentID)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, errors.Wrap(err, "bulk cancel")
	}
	logger.Infof("bulk cancel: %d cancelled, %d skipped, %d failed", len(res.Cancelled), len(res.Skipped), len(res.Failed))
	return res, nil
}

// Registration window of the registry and the point from which unsent
// documents are reported as about to expire.
const (
	RegistrationWindow = 72 * time.Hour
	ExpiryWarning      = 48 * time.Hour
)

type ExpiredReport struct {
	// Expired documents are past the registration window.
	Expired []*model.Document
	// Expiring documents are between 48 and 72 hours old.
	Expiring []*model.Document
}

// ExpiredUnregistered reports documents that never got an IRN.
func (e *Engine) ExpiredUnregistered(ctx context.Context, now time.Time) (*ExpiredReport, error) {

	docs, err := e.store.ListUnregistered(ctx, now.Add(-ExpiryWarning))
	if err != nil {
		return nil, errors.Wrap(err, "list unregistered documents")
	}

	report := &ExpiredReport{}
	cutoff := now.Add(-RegistrationWindow)
	for _, d := range docs {
		if !d.CreatedAt.After(cutoff) {
			report.Expired = append(report.Expired, d)
		} else {
			report.Expiring = append(report.Expiring, d)
		}
	}
	return report, nil
}

// DraftMemo copies original into a new unregistered memo. The caller edits
// the lines to the corrected contents before issuing it.
func DraftMemo(original *model.Document) *model.Document {
	memo := model.NewDocument(model.KindCreditMemo)
	memo.Currency = original.Currency
	memo.Seller = original.Seller
	memo.Buyer = original.Buyer
	memo.Lines = append([]model.LineItem(nil), original.Lines...)
	memo.PaymentMode = original.PaymentMode
	memo.PaymentTerm = original.PaymentTerm
	memo.CashierName = original.CashierName
	memo.SalesPersonName = original.SalesPersonName
	memo.OriginalID = original.ID
	memo.PreviousIrn = original.Irn
	return memo
}
