package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock, db
}

func TestTakeMapping_Found(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	q := `(?s)^\s*DELETE\s+FROM\s+bulk_mappings\s+WHERE\s+document_number\s*=\s*\$1\s+RETURNING\s+document_number,\s*document_id,\s*conversation_id,\s*created_at\s*$`
	created := time.Now().UTC()
	mock.ExpectQuery(q).
		WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"document_number", "document_id", "conversation_id", "created_at"}).
			AddRow("17", "doc-1", "conv-9", created))

	m, err := s.TakeMapping(context.Background(), "17")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", m.DocumentID)
	assert.Equal(t, "conv-9", m.ConversationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTakeMapping_AlreadyConsumed(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)DELETE\s+FROM\s+bulk_mappings`).
		WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"document_number", "document_id", "conversation_id", "created_at"}))

	_, err := s.TakeMapping(context.Background(), "17")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextSequence_Upsert(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	q := `(?s)INSERT\s+INTO\s+sequences\s+\(name,\s*value\).*ON\s+CONFLICT\s+\(name\)\s+DO\s+UPDATE.*RETURNING\s+value`
	mock.ExpectQuery(q).
		WithArgs("invoice/0054835018").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(8)))

	v, err := s.NextSequence(context.Background(), "invoice/0054835018")
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextSequence_DBError(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+sequences`).
		WithArgs("c").
		WillReturnError(errors.New("db down"))

	_, err := s.NextSequence(context.Background(), "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestSaveAndFindDocument(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)
	ctx := context.Background()

	doc := model.NewDocument(model.KindInvoice)
	doc.Irn = "irn-1"
	doc.Status = model.StatusVerified

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+documents.*ON\s+CONFLICT\s+\(id\)\s+DO\s+UPDATE`).
		WithArgs(doc.ID, "invoice", "verified", sql.NullString{String: "irn-1", Valid: true}, sql.NullString{},
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveDocument(ctx, doc))

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	mock.ExpectQuery(`(?s)SELECT\s+data\s+FROM\s+documents\s+WHERE\s+irn\s*=\s*\$1`).
		WithArgs("irn-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	got, err := s.FindDocumentByIrn(ctx, "irn-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, model.StatusVerified, got.Status)

	mock.ExpectQuery(`(?s)SELECT\s+data\s+FROM\s+documents\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = s.FindDocument(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendLog_Ledger(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	entry := model.NewLogEntry("doc-1", model.OpCancel, model.OutcomeSuccess)
	entry.Irn = "irn-1"

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+registry_logs`).
		WithArgs(entry.ID, sql.NullString{String: "doc-1", Valid: true}, "cancel", "cancel", "success",
			sql.NullString{}, sql.NullString{String: "irn-1", Valid: true}, sql.NullString{},
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.AppendLog(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMappingsBefore(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)
	cutoff := time.Now().Add(-72 * time.Hour)

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+bulk_mappings\s+WHERE\s+created_at\s*<\s*\$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteMappingsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	_, mock, db := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+bulk_mappings`).
		WithArgs("17").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, func(ctx context.Context, s *Store) error {
		if err := s.DeleteMapping(ctx, "17"); err != nil {
			return err
		}
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_UsesEmbeddedFS(t *testing.T) {
	_, _, db := newStoreWithMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)
}

func TestAtomically_RollsBackTakenMapping(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)DELETE\s+FROM\s+bulk_mappings\s+WHERE\s+document_number`).
		WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"document_number", "document_id", "conversation_id", "created_at"}).
			AddRow("17", "doc-1", "", time.Now().UTC()))
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx store.Store) error {
		if _, err := tx.TakeMapping(ctx, "17"); err != nil {
			return err
		}
		return errors.New("save failed")
	})
	assert.EqualError(t, err, "save failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomically_Commits(t *testing.T) {
	s, mock, _ := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+bulk_mappings`).
		WithArgs("17").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx store.Store) error {
		return tx.DeleteMapping(ctx, "17")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
