package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markazapp/markaz-core/internal/models"
)

func paymentColumns() []string {
	return []string{"id", "student_id", "amount", "payment_date", "payment_method", "notes", "created_at"}
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payment_transactions").
		WithArgs("STU000001", int64(850), "2024-06-10", "cash", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	payment := &models.PaymentTransaction{
		StudentID:     "STU000001",
		Amount:        850,
		PaymentDate:   models.NewDate(2024, time.June, 10),
		PaymentMethod: models.MethodCash,
		CreatedAt:     models.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.Equal(t, int64(11), payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryList_FilterByStudentAndRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	start := models.NewDate(2024, time.January, 1)

	mock.ExpectQuery("FROM payment_transactions WHERE 1=1 AND student_id = \\? AND payment_date >= \\? ORDER BY payment_date DESC, id DESC LIMIT 50 OFFSET 0").
		WithArgs("STU000001", "2024-01-01").
		WillReturnRows(sqlmock.NewRows(paymentColumns()).
			AddRow(2, "STU000001", 850, "2024-03-01", "cash", nil, time.Now()).
			AddRow(1, "STU000001", 850, "2024-02-01", "bank_transfer", "first month", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payment_transactions WHERE 1=1 AND student_id = ? AND payment_date >= ?")).
		WithArgs("STU000001", "2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{
		StudentID: "STU000001",
		StartDate: &start,
	})
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, models.MethodBankTransfer, payments[1].PaymentMethod)
	require.NotNil(t, payments[1].Notes)
	assert.Equal(t, "first month", *payments[1].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payment_transactions WHERE student_id = ?")).
		WithArgs("STU000001").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(1700))

	total, err := repo.SumByStudent(context.Background(), "STU000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1700), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryStatistics(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS count, COALESCE\\(SUM\\(amount\\), 0\\) AS total FROM payment_transactions WHERE 1=1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "total"}).AddRow(4, 3400))
	mock.ExpectQuery("GROUP BY payment_method").
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "count", "total"}).
			AddRow("cash", 3, 2550).
			AddRow("check", 1, 850))

	stats, err := repo.Statistics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TransactionCount)
	assert.Equal(t, int64(3400), stats.TotalAmount)
	assert.InDelta(t, 850.0, stats.AverageAmount, 0.001)
	assert.Equal(t, models.MethodStats{Count: 3, TotalAmount: 2550}, stats.MethodBreakdown[models.MethodCash])
	assert.Equal(t, models.MethodStats{Count: 1, TotalAmount: 850}, stats.MethodBreakdown[models.MethodCheck])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryStatistics_Empty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS count").
		WillReturnRows(sqlmock.NewRows([]string{"count", "total"}).AddRow(0, 0))
	mock.ExpectQuery("GROUP BY payment_method").
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "count", "total"}))

	stats, err := repo.Statistics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.TransactionCount)
	assert.Zero(t, stats.AverageAmount)
	assert.Empty(t, stats.MethodBreakdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}
