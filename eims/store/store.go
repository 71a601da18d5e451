// Package store holds the persistence boundary of the registry client and
// its in-memory and PostgreSQL implementations.
package store

import (
	"context"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/model"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = api.ErrNotFound

type Documents interface {
	FindDocument(ctx context.Context, id string) (*model.Document, error)
	FindDocumentByIrn(ctx context.Context, irn string) (*model.Document, error)
	SaveDocument(ctx context.Context, doc *model.Document) error
	// ListUnregistered returns documents without IRN created before the cutoff.
	ListUnregistered(ctx context.Context, createdBefore time.Time) ([]*model.Document, error)
}

type LogSink interface {
	AppendLog(ctx context.Context, entry *model.RegistryLogEntry) error
	UpsertDocumentLog(ctx context.Context, log *model.DocumentLog) error
	FindDocumentLog(ctx context.Context, documentID string) (*model.DocumentLog, error)
	ListLogs(ctx context.Context, documentID string) ([]*model.RegistryLogEntry, error)
}

type Mappings interface {
	SaveMapping(ctx context.Context, m *model.BulkMapping) error
	FindMapping(ctx context.Context, documentNumber string) (*model.BulkMapping, error)
	DeleteMapping(ctx context.Context, documentNumber string) error
	// TakeMapping finds and deletes in one step; of concurrent callers for
	// the same number only one gets the mapping, the rest get ErrNotFound.
	TakeMapping(ctx context.Context, documentNumber string) (*model.BulkMapping, error)
	DeleteMappingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Notifications interface {
	AppendNotification(ctx context.Context, n *model.NotificationLogEntry) error
}

type Withholdings interface {
	SaveWithholding(ctx context.Context, w *model.WithholdingReceipt) error
}

type Sequencer interface {
	// NextSequence returns 1, 2, 3... per counter name.
	NextSequence(ctx context.Context, counter string) (int64, error)
}

// Atomic runs fn against a view of the store whose writes are applied
// together: when fn returns an error none of them remain.
type Atomic interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type Store interface {
	Atomic
	Documents
	LogSink
	Mappings
	Notifications
	Withholdings
	Sequencer
}
