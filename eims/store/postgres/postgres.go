// Package postgres is the PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/alapierre/go-eims-client/eims/store/postgres/migrations"
	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.store.postgres")

// DBTX is the subset of database/sql used by the store; *sql.DB and *sql.Tx
// both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db DBTX
}

var _ store.Store = (*Store)(nil)

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects through the pgx stdlib driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return errors.Wrap(err, "migrate")
	}
	logger.Debug("database schema is up to date")
	return nil
}

// WithTx runs fn on a Store bound to one transaction, committing when fn
// returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, s *Store) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, New(tx))
}

// Atomically runs fn in a transaction. A store already bound to a
// transaction joins it.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(ctx, s)
	}
	return WithTx(ctx, db, func(ctx context.Context, tx *Store) error {
		return fn(ctx, tx)
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (s *Store) FindDocument(ctx context.Context, id string) (*model.Document, error) {
	query := `
		SELECT data
		FROM documents
		WHERE id = $1
	`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) FindDocumentByIrn(ctx context.Context, irn string) (*model.Document, error) {
	query := `
		SELECT data
		FROM documents
		WHERE irn = $1
	`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, irn))
}

func (s *Store) scanDocument(row *sql.Row) (*model.Document, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "db error")
	}
	var d model.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return &d, nil
}

func (s *Store) SaveDocument(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	query := `
		INSERT INTO documents (id, kind, status, irn, document_number, created_at, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, irn = EXCLUDED.irn, document_number = EXCLUDED.document_number,
		    updated_at = EXCLUDED.updated_at, data = EXCLUDED.data
	`
	if _, err := s.db.ExecContext(ctx, query,
		doc.ID, string(doc.Kind), string(doc.Status), nullString(doc.Irn), nullString(doc.DocumentNumber),
		doc.CreatedAt, doc.UpdatedAt, data,
	); err != nil {
		return errors.Wrap(err, "error performing sql request")
	}
	return nil
}

func (s *Store) ListUnregistered(ctx context.Context, createdBefore time.Time) ([]*model.Document, error) {
	query := `
		SELECT data
		FROM documents
		WHERE irn IS NULL AND created_at < $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, createdBefore)
	if err != nil {
		return nil, errors.Wrap(err, "db error")
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "scan document")
		}
		var d model.Document
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, errors.Wrap(err, "decode document")
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *Store) AppendLog(ctx context.Context, entry *model.RegistryLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode log entry")
	}
	query := `
		INSERT INTO registry_logs (id, document_id, ledger, operation, outcome, status, irn, conversation_id, created_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := s.db.ExecContext(ctx, query,
		entry.ID, nullString(entry.DocumentID), string(entry.Operation.Ledger()), string(entry.Operation),
		string(entry.Outcome), nullString(string(entry.Status)), nullString(entry.Irn), nullString(entry.ConversationID),
		entry.CreatedAt, data,
	); err != nil {
		return errors.Wrap(err, "error performing sql request")
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, documentID string) ([]*model.RegistryLogEntry, error) {
	query := `
		SELECT data
		FROM registry_logs
		WHERE ($1 = '' OR document_id = $1)
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, "db error")
	}
	defer rows.Close()

	var out []*model.RegistryLogEntry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "scan log entry")
		}
		var e model.RegistryLogEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, errors.Wrap(err, "decode log entry")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) UpsertDocumentLog(ctx context.Context, l *model.DocumentLog) error {
	query := `
		INSERT INTO document_logs (document_id, irn, status, message, ack_date, signed_qr, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id) DO UPDATE
		SET irn = EXCLUDED.irn, status = EXCLUDED.status, message = EXCLUDED.message,
		    ack_date = EXCLUDED.ack_date, signed_qr = EXCLUDED.signed_qr, checked_at = EXCLUDED.checked_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		l.DocumentID, nullString(l.Irn), string(l.Status), nullString(l.Message),
		nullTime(l.AckDate), nullString(l.SignedQR), l.CheckedAt,
	); err != nil {
		return errors.Wrap(err, "error performing sql request")
	}
	return nil
}

func (s *Store) FindDocumentLog(ctx context.Context, documentID string) (*model.DocumentLog, error) {
	query := `
		SELECT document_id, irn, status, message, ack_date, signed_qr, checked_at
		FROM document_logs
		WHERE document_id = $1
	`
	var (
		l                model.DocumentLog
		irn, message, qr sql.NullString
		status           string
		ackDate          sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, documentID).
		Scan(&l.DocumentID, &irn, &status, &message, &ackDate, &qr, &l.CheckedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "db error")
	}
	l.Irn, l.Message, l.SignedQR = irn.String, message.String, qr.String
	l.Status = model.Status(status)
	if ackDate.Valid {
		l.AckDate = ackDate.Time
	}
	return &l, nil
}

func (s *Store) SaveMapping(ctx context.Context, m *model.BulkMapping) error {
	query := `
		INSERT INTO bulk_mappings (document_number, document_id, conversation_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_number) DO UPDATE
		SET document_id = EXCLUDED.document_id, conversation_id = EXCLUDED.conversation_id, created_at = EXCLUDED.created_at
	`
	if _, err := s.db.ExecContext(ctx, query, m.DocumentNumber, m.DocumentID, nullString(m.ConversationID), m.CreatedAt); err != nil {
		return errors.Wrap(err, "error performing sql request")
	}
	return nil
}

func (s *Store) FindMapping(ctx context.Context, documentNumber string) (*model.BulkMapping, error) {
	query := `
		SELECT document_number, document_id, conversation_id, created_at
		FROM bulk_mappings
		WHERE document_number = $1
	`
	return scanMapping(s.db.QueryRowContext(ctx, query, documentNumber))
}

func (s *Store) DeleteMapping(ctx context.Context, documentNumber string) error {
	query := `
		DELETE FROM bulk_mappings
		WHERE document_number = $1
	`
	if _, err := s.db.ExecContext(ctx, query, documentNumber); err != nil {
		return errors.Wrap(err, "db error")
	}
	return nil
}

// TakeMapping relies on DELETE ... RETURNING: of two concurrent deliveries
// only one statement sees the row.
func (s *Store) TakeMapping(ctx context.Context, documentNumber string) (*model.BulkMapping, error) {
	query := `
		DELETE FROM bulk_mappings
		WHERE document_number = $1
		RETURNING document_number, document_id, conversation_id, created_at
	`
	return scanMapping(s.db.QueryRowContext(ctx, query, documentNumber))
}

func scanMapping(row *sql.Row) (*model.BulkMapping, error) {
	var (
		m    model.BulkMapping
		conv sql.NullString
	)
	if err := row.Scan(&m.DocumentNumber, &m.DocumentID, &conv, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "db error")
	}
	m.ConversationID = conv.String
	return &m, nil
}

func (s *Store) DeleteMappingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM bulk_mappings
		WHERE created_at < $1
	`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "db error")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

func (s *Store) AppendNotification(ctx context.Context, n *model.NotificationLogEntry) error {
	query := `
		INSERT INTO notification_logs (id, irn, invoice_number, action, channel, recipient, status, event_at, received_at, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := s.db.ExecContext(ctx, query,
		n.ID, nullString(n.Irn), nullString(n.InvoiceNumber), n.Action, n.Channel, nullString(n.Recipient),
		string(n.Status), nullTime(n.EventAt), n.ReceivedAt, n.RawPayload,
	); err != nil {
		return errors.Wrap(err, "error performing sql request")
	}
	return nil
}

func (s *Store) SaveWithholding(ctx context.Context, w *model.WithholdingReceipt) error {
	data, err := json.Marshal(w)
	if err != nil {
		return errors.Wrap(err, "encode withholding receipt")
	}
	query := `
		INSERT INTO withholding_receipts (id, invoice_irn, status, rrn, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, rrn = EXCLUDED.rrn, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data
	`
	if _, err := s.db.ExecContext(ctx, query,
		w.ID, w.InvoiceIrn, string(w.Status), nullString(w.RRN), time.Now().UTC(), data,
	); err != nil {
		return errors.Wrap(err, "error performing sql request")
	}
	return nil
}

// NextSequence is a single upsert so concurrent callers never share a value.
func (s *Store) NextSequence(ctx context.Context, counter string) (int64, error) {
	query := `
		INSERT INTO sequences (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`
	var v int64
	if err := s.db.QueryRowContext(ctx, query, counter).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "db error")
	}
	return v, nil
}
