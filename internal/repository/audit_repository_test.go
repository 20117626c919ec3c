package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markazapp/markaz-core/internal/models"
)

func TestAuditRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	newValues := `{"name":"Ahmad"}`
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs("CREATE", "students", "STU000001", nil, newValues, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))

	entry := &models.AuditEntry{
		Action:    models.AuditCreate,
		TableName: "students",
		RecordID:  "STU000001",
		NewValues: &newValues,
		Timestamp: models.Now(),
	}
	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.Equal(t, int64(5), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryList_Filtered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery("FROM audit_log WHERE 1=1 AND table_name = \\? AND record_id = \\? ORDER BY id DESC LIMIT 100").
		WithArgs("students", "STU000001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "action_type", "table_name", "record_id",
			"old_values", "new_values", "timestamp"}).
			AddRow(2, "UPDATE", "students", "STU000001", `{"paid_amount":0}`, `{"paid_amount":850}`, time.Now()).
			AddRow(1, "CREATE", "students", "STU000001", nil, `{"name":"Ahmad"}`, time.Now()))

	entries, err := repo.List(context.Background(), models.AuditFilter{
		TableName: "students",
		RecordID:  "STU000001",
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditUpdate, entries[0].Action)
	assert.Nil(t, entries[1].OldValues)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryPurgeOlderThan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp < \\?").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := repo.PurgeOlderThan(context.Background(), models.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
