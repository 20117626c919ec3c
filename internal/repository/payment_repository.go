package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/markazapp/markaz-core/internal/models"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// PaymentRepository manages persistence for payment transactions.
type PaymentRepository struct {
	q Queryer
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *PaymentRepository) WithTx(tx *sqlx.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create inserts a payment transaction and fills in its generated ID.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.PaymentTransaction) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO payment_transactions (student_id, amount, payment_date, payment_method, notes, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		payment.StudentID, payment.Amount, payment.PaymentDate, payment.PaymentMethod,
		payment.Notes, payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	payment.ID = id
	return nil
}

// FindByID fetches one payment transaction.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := r.q.GetContext(ctx, &payment,
		`SELECT id, student_id, amount, payment_date, payment_method, notes, created_at
         FROM payment_transactions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("payment %d not found", id))
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// Delete removes a payment transaction.
func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM payment_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("payment %d not found", id))
	}
	return nil
}

// List returns payment transactions matching the filter, newest first, plus
// the unpaginated total.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentTransaction, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		conditions = append(conditions, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "payment_date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "payment_date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Method != "" {
		conditions = append(conditions, "payment_method = ?")
		args = append(args, filter.Method)
	}
	if filter.MinAmount != nil {
		conditions = append(conditions, "amount >= ?")
		args = append(args, *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		conditions = append(conditions, "amount <= ?")
		args = append(args, *filter.MaxAmount)
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}

	query := fmt.Sprintf(`SELECT id, student_id, amount, payment_date, payment_method, notes, created_at
        FROM payment_transactions WHERE %s
        ORDER BY payment_date DESC, id DESC LIMIT %d OFFSET %d`, where, size, (page-1)*size)

	var payments []models.PaymentTransaction
	if err := r.q.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payment_transactions WHERE %s", where)
	if err := r.q.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// Recent returns the latest n transactions across all students.
func (r *PaymentRepository) Recent(ctx context.Context, n int) ([]models.PaymentTransaction, error) {
	if n <= 0 {
		n = 10
	}
	query := fmt.Sprintf(`SELECT id, student_id, amount, payment_date, payment_method, notes, created_at
        FROM payment_transactions ORDER BY payment_date DESC, id DESC LIMIT %d`, n)
	var payments []models.PaymentTransaction
	if err := r.q.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	return payments, nil
}

// SumByStudent returns the total recorded for one student across all
// transactions. It is the ground truth the students.paid_amount projection
// must agree with.
func (r *PaymentRepository) SumByStudent(ctx context.Context, studentID string) (int64, error) {
	var total int64
	err := r.q.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(amount), 0) FROM payment_transactions WHERE student_id = ?", studentID)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

// methodRow is the per-method aggregate scanned by Statistics.
type methodRow struct {
	Method models.PaymentMethod `db:"payment_method"`
	Count  int                  `db:"count"`
	Total  int64                `db:"total"`
}

// Statistics aggregates transactions over an optional date range.
func (r *PaymentRepository) Statistics(ctx context.Context, from, to *models.Date) (*models.PaymentStatistics, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if from != nil {
		conditions = append(conditions, "payment_date >= ?")
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, "payment_date <= ?")
		args = append(args, *to)
	}
	where := strings.Join(conditions, " AND ")

	stats := &models.PaymentStatistics{
		MethodBreakdown: make(map[models.PaymentMethod]models.MethodStats),
	}

	totals := struct {
		Count int   `db:"count"`
		Total int64 `db:"total"`
	}{}
	totalQuery := fmt.Sprintf(
		"SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total FROM payment_transactions WHERE %s", where)
	if err := r.q.GetContext(ctx, &totals, totalQuery, args...); err != nil {
		return nil, fmt.Errorf("payment statistics: %w", err)
	}
	stats.TransactionCount = totals.Count
	stats.TotalAmount = totals.Total
	if totals.Count > 0 {
		stats.AverageAmount = float64(totals.Total) / float64(totals.Count)
	}

	var rows []methodRow
	methodQuery := fmt.Sprintf(`SELECT payment_method, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
        FROM payment_transactions WHERE %s GROUP BY payment_method`, where)
	if err := r.q.SelectContext(ctx, &rows, methodQuery, args...); err != nil {
		return nil, fmt.Errorf("payment statistics by method: %w", err)
	}
	for _, row := range rows {
		stats.MethodBreakdown[row.Method] = models.MethodStats{Count: row.Count, TotalAmount: row.Total}
	}
	return stats, nil
}
