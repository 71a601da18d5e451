package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alapierre/go-eims-client/eims/model"
)

// Memory is a Store for tests and single process use.
type Memory struct {
	txMu          sync.Mutex
	mu            sync.Mutex
	documents     map[string]*model.Document
	logs          []*model.RegistryLogEntry
	documentLogs  map[string]*model.DocumentLog
	mappings      map[string]*model.BulkMapping
	notifications []*model.NotificationLogEntry
	withholdings  map[string]*model.WithholdingReceipt
	sequences     map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		documents:    make(map[string]*model.Document),
		documentLogs: make(map[string]*model.DocumentLog),
		mappings:     make(map[string]*model.BulkMapping),
		withholdings: make(map[string]*model.WithholdingReceipt),
		sequences:    make(map[string]int64),
	}
}

func (m *Memory) FindDocument(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *Memory) FindDocumentByIrn(_ context.Context, irn string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.documents {
		if d.Irn != "" && d.Irn == irn {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveDocument(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc.Clone()
	return nil
}

func (m *Memory) ListUnregistered(_ context.Context, createdBefore time.Time) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.documents {
		if d.Irn == "" && d.CreatedAt.Before(createdBefore) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AppendLog(_ context.Context, entry *model.RegistryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *entry
	m.logs = append(m.logs, &c)
	return nil
}

func (m *Memory) UpsertDocumentLog(_ context.Context, log *model.DocumentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *log
	m.documentLogs[log.DocumentID] = &c
	return nil
}

func (m *Memory) FindDocumentLog(_ context.Context, documentID string) (*model.DocumentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.documentLogs[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *l
	return &c, nil
}

// ListLogs returns entries in insertion order; an empty id returns all.
func (m *Memory) ListLogs(_ context.Context, documentID string) ([]*model.RegistryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RegistryLogEntry
	for _, l := range m.logs {
		if documentID == "" || l.DocumentID == documentID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) SaveMapping(_ context.Context, bm *model.BulkMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *bm
	m.mappings[bm.DocumentNumber] = &c
	return nil
}

func (m *Memory) FindMapping(_ context.Context, documentNumber string) (*model.BulkMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bm, ok := m.mappings[documentNumber]
	if !ok {
		return nil, ErrNotFound
	}
	c := *bm
	return &c, nil
}

func (m *Memory) DeleteMapping(_ context.Context, documentNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mappings, documentNumber)
	return nil
}

func (m *Memory) TakeMapping(_ context.Context, documentNumber string) (*model.BulkMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bm, ok := m.mappings[documentNumber]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.mappings, documentNumber)
	return bm, nil
}

func (m *Memory) DeleteMappingsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, bm := range m.mappings {
		if bm.CreatedAt.Before(cutoff) {
			delete(m.mappings, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) AppendNotification(_ context.Context, n *model.NotificationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *n
	m.notifications = append(m.notifications, &c)
	return nil
}

func (m *Memory) Notifications() []*model.NotificationLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.NotificationLogEntry(nil), m.notifications...)
}

func (m *Memory) SaveWithholding(_ context.Context, w *model.WithholdingReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *w
	m.withholdings[w.ID] = &c
	return nil
}

func (m *Memory) Withholding(id string) (*model.WithholdingReceipt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withholdings[id]
	if !ok {
		return nil, false
	}
	c := *w
	return &c, true
}

func (m *Memory) NextSequence(_ context.Context, counter string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[counter]++
	return m.sequences[counter], nil
}

type memorySnapshot struct {
	documents     map[string]*model.Document
	logs          int
	documentLogs  map[string]*model.DocumentLog
	mappings      map[string]*model.BulkMapping
	notifications int
	withholdings  map[string]*model.WithholdingReceipt
	sequences     map[string]int64
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Atomically restores the state taken before fn when fn fails. Atomic
// sections run one at a time; writes made outside them while fn runs are
// lost on restore.
func (m *Memory) Atomically(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	// stored values are never mutated in place, copying the maps is enough
	m.mu.Lock()
	snap := memorySnapshot{
		documents:     cloneMap(m.documents),
		logs:          len(m.logs),
		documentLogs:  cloneMap(m.documentLogs),
		mappings:      cloneMap(m.mappings),
		notifications: len(m.notifications),
		withholdings:  cloneMap(m.withholdings),
		sequences:     cloneMap(m.sequences),
	}
	m.mu.Unlock()

	err := fn(ctx, m)
	if err == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = snap.documents
	m.logs = m.logs[:snap.logs]
	m.documentLogs = snap.documentLogs
	m.mappings = snap.mappings
	m.notifications = m.notifications[:snap.notifications]
	m.withholdings = snap.withholdings
	m.sequences = snap.sequences
	return err
}
