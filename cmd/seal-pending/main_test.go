package main

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingwithjoel/fwj-api/crypto"
	"github.com/flyingwithjoel/fwj-api/datarequest"
)

// base64 of "0123456789abcdef0123456789abcdef"
const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

var (
	selectQuery = regexp.QuoteMeta(`SELECT key, value FROM kv`)
	updateQuery = regexp.QuoteMeta(`UPDATE kv SET value = $1, updated_at = NOW() WHERE key = $2 AND value = $3`)
)

func newSealer(t *testing.T) *crypto.Sealer {
	t.Helper()
	s, err := crypto.NewSealer(testKey)
	require.NoError(t, err)
	return s
}

func recordJSON(t *testing.T, rec datarequest.Record) string {
	t.Helper()
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	return string(b)
}

func TestSealPending_DryRun(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	sealer := newSealer(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sealedEmail, err := sealer.Seal("already@example.com")
	require.NoError(t, err)
	processed := now.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow("dsar:aaa", recordJSON(t, datarequest.Record{Email: "pilot@example.com", Action: datarequest.ActionAccess, CreatedAtUtc: now})).
		AddRow("dsar:bbb", recordJSON(t, datarequest.Record{Email: sealedEmail, Action: datarequest.ActionDelete, CreatedAtUtc: now})).
		AddRow("dsar:ccc", recordJSON(t, datarequest.Record{EmailHash: "abc", Action: datarequest.ActionDelete, CreatedAtUtc: now, ProcessedAtUtc: &processed}))
	mock.ExpectQuery(selectQuery).WithArgs("dsar:%", now).WillReturnRows(rows)

	require.NoError(t, sealPending(context.Background(), database, sealer, true, now))
	assert.NoError(t, mock.ExpectationsWereMet(), "dry run must not write")
}

func TestSealPending_SealsPlaintext(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	original := recordJSON(t, datarequest.Record{Email: "pilot@example.com", Action: datarequest.ActionAccess, CreatedAtUtc: now})

	mock.ExpectQuery(selectQuery).WillReturnRows(
		sqlmock.NewRows([]string{"key", "value"}).AddRow("dsar:aaa", original))
	mock.ExpectBegin()
	mock.ExpectExec(updateQuery).
		WithArgs(sqlmock.AnyArg(), "dsar:aaa", original).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, sealPending(context.Background(), database, newSealer(t), false, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSealPending_ConcurrentModification(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	original := recordJSON(t, datarequest.Record{Email: "pilot@example.com", Action: datarequest.ActionDelete, CreatedAtUtc: now})

	mock.ExpectQuery(selectQuery).WillReturnRows(
		sqlmock.NewRows([]string{"key", "value"}).AddRow("dsar:aaa", original))
	mock.ExpectBegin()
	mock.ExpectExec(updateQuery).
		WithArgs(sqlmock.AnyArg(), "dsar:aaa", original).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = sealPending(context.Background(), database, newSealer(t), false, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 errors")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSealPending_CorruptRecordCounted(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectQuery(selectQuery).WillReturnRows(
		sqlmock.NewRows([]string{"key", "value"}).AddRow("dsar:aaa", "{not json"))

	err = sealPending(context.Background(), database, newSealer(t), false, time.Now())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSealRecord_RoundTrip(t *testing.T) {
	sealer := newSealer(t)
	now := time.Now().UTC().Truncate(time.Second)
	in := recordJSON(t, datarequest.Record{Email: "pilot@example.com", Action: datarequest.ActionAccess, CreatedAtUtc: now})

	out, ok, err := sealRecord(sealer, in)
	require.NoError(t, err)
	require.True(t, ok)

	var rec datarequest.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.True(t, crypto.IsSealed(rec.Email))
	assert.Equal(t, datarequest.ActionAccess, rec.Action)
	assert.True(t, rec.CreatedAtUtc.Equal(now))

	plain, err := sealer.Open(rec.Email)
	require.NoError(t, err)
	assert.Equal(t, "pilot@example.com", plain)

	_, ok, err = sealRecord(sealer, out)
	require.NoError(t, err)
	assert.False(t, ok, "sealing is idempotent")
}
