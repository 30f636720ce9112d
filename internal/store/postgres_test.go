package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func TestPostgresSaveLead(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	lead := sampleLead("pg-1")
	require.NoError(t, s.SaveLead(context.Background(), lead))
	assert.Equal(t, int64(7), lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveLeadDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING yields no RETURNING row for a duplicate.
	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	err := s.SaveLead(context.Background(), sampleLead("pg-1"))
	assert.True(t, eris.Is(err, ErrDuplicateLead))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkCRMSynced(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE leads SET crm_synced_at").
		WithArgs(pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkCRMSynced(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkCRMSyncedMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE leads SET crm_synced_at").
		WithArgs(pgxmock.AnyArg(), int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkCRMSynced(context.Background(), 404)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestPostgresUpdateStatusRejectsInvalid(t *testing.T) {
	s, _ := newMockStore(t)

	err := s.UpdateStatus(context.Background(), 1, model.Status("bogus"), "")
	assert.Error(t, err)
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS leads").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
