package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markazapp/markaz-core/internal/models"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentColumns() []string {
	return []string{"id", "name", "group_id", "payment_plan", "plan_amount",
		"installment_count", "paid_amount", "enrollment_date", "next_due_date",
		"payment_status", "created_at", "updated_at", "group_name"}
}

func studentRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	return rows.AddRow(id, "Ahmad", 1, "monthly", 850, nil, 850,
		"2024-01-15", "2024-02-15", "pending",
		time.Now(), time.Now(), "Group A")
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRow(sqlmock.NewRows(studentColumns()), "STU000001")
	mock.ExpectQuery("SELECT s.id, s.name, .+ FROM students s JOIN groups g ON g.id = s.group_id WHERE 1=1 ORDER BY s.name ASC LIMIT 50 OFFSET 0").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s JOIN groups g ON g.id = s.group_id WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "STU000001", list[0].ID)
	assert.Equal(t, "Group A", list[0].GroupName)
	assert.Equal(t, models.PlanMonthly, list[0].PaymentPlan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryList_Filters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students s JOIN groups g .+ WHERE 1=1 AND s.group_id = \\? AND s.payment_status = \\?").
		WithArgs(int64(2), "overdue").
		WillReturnRows(sqlmock.NewRows(studentColumns()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(2), "overdue").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.StudentFilter{
		GroupID: 2, Status: models.StatusOverdue,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByID_NotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT s.id, .+ WHERE s.id = \\?").
		WithArgs("STU000099").
		WillReturnRows(sqlmock.NewRows(studentColumns()))

	_, err := repo.FindByID(context.Background(), "STU000099")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryNextID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(CAST(SUBSTR(id, 4) AS INTEGER)), 0) FROM students WHERE id LIKE 'STU%'")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(41))

	id, err := repo.NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "STU000042", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs("STU000001", "Ahmad", int64(1), "monthly", int64(850),
			nil, int64(0), sqlmock.AnyArg(), nil, "pending",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		ID:             "STU000001",
		Name:           "Ahmad",
		GroupID:        1,
		PaymentPlan:    models.PlanMonthly,
		PlanAmount:     850,
		EnrollmentDate: models.NewDate(2024, time.January, 15),
		PaymentStatus:  models.StatusPending,
		CreatedAt:      models.Now(),
		UpdatedAt:      models.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDelete_NotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students WHERE id = \\?").
		WithArgs("STU000099").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "STU000099")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryAddToPaidAmount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET paid_amount = paid_amount \\+ \\?").
		WithArgs(int64(850), sqlmock.AnyArg(), "STU000001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddToPaidAmount(context.Background(), "STU000001", 850, models.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdatePaymentState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	due := models.NewDate(2024, time.March, 15)
	mock.ExpectExec("UPDATE students SET payment_status = \\?, next_due_date = \\?").
		WithArgs("due_soon", "2024-03-15", sqlmock.AnyArg(), "STU000001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	state := models.PaymentState{Status: models.StatusDueSoon, NextDue: &due}
	require.NoError(t, repo.UpdatePaymentState(context.Background(), "STU000001", state, models.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryReassignGroup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET group_id = \\?").
		WithArgs(int64(2), sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	moved, err := repo.ReassignGroup(context.Background(), 1, 2, models.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
