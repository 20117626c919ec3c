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

const studentIDPrefix = "STU"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	q Queryer
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{q: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *StudentRepository) WithTx(tx *sqlx.Tx) *StudentRepository {
	return &StudentRepository{q: tx}
}

// NextID allocates the next sequential student identifier (STU000001, ...).
// Must run inside the same transaction as the insert that uses it.
func (r *StudentRepository) NextID(ctx context.Context) (string, error) {
	var max int
	err := r.q.GetContext(ctx, &max,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 4) AS INTEGER)), 0) FROM students WHERE id LIKE 'STU%'")
	if err != nil {
		return "", fmt.Errorf("allocate student id: %w", err)
	}
	return fmt.Sprintf("%s%06d", studentIDPrefix, max+1), nil
}

// List returns students matching the provided filters, joined with their
// group name, plus the unpaginated total.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s JOIN groups g ON g.id = s.group_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.GroupID > 0 {
		conditions = append(conditions, "s.group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "s.payment_status = ?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(s.name) LIKE ? OR s.id LIKE ?)")
		needle := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, needle, "%"+strings.ToUpper(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":            "s.name",
		"enrollment_date": "s.enrollment_date",
		"payment_status":  "s.payment_status",
		"next_due_date":   "s.next_due_date",
		"created_at":      "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.name, s.group_id, s.payment_plan, s.plan_amount,
        s.installment_count, s.paid_amount, s.enrollment_date, s.next_due_date, s.payment_status,
        s.created_at, s.updated_at, g.name AS group_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.q.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.q.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.name, s.group_id, s.payment_plan, s.plan_amount,
        s.installment_count, s.paid_amount, s.enrollment_date, s.next_due_date, s.payment_status,
        s.created_at, s.updated_at, g.name AS group_name
        FROM students s JOIN groups g ON g.id = s.group_id
        WHERE s.id = ?`
	var detail models.StudentDetail
	if err := r.q.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &detail, nil
}

// Create inserts a new student record. ID and timestamps must already be set
// by the caller.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (id, name, group_id, payment_plan, plan_amount,
        installment_count, paid_amount, enrollment_date, next_due_date, payment_status, created_at, updated_at)
        VALUES (:id, :name, :group_id, :payment_plan, :plan_amount,
        :installment_count, :paid_amount, :enrollment_date, :next_due_date, :payment_status, :created_at, :updated_at)`
	if _, err := r.q.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET name = :name, group_id = :group_id,
        payment_plan = :payment_plan, plan_amount = :plan_amount, installment_count = :installment_count,
        paid_amount = :paid_amount, enrollment_date = :enrollment_date, next_due_date = :next_due_date,
        payment_status = :payment_status, updated_at = :updated_at WHERE id = :id`
	res, err := r.q.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", student.ID))
	}
	return nil
}

// Delete removes a student. Attendance and payment rows cascade via
// foreign keys inside the same statement.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
	}
	return nil
}

// UpdatePaymentState writes the recomputed status projection back to a row.
func (r *StudentRepository) UpdatePaymentState(ctx context.Context, id string, state models.PaymentState, now models.Time) error {
	const query = `UPDATE students SET payment_status = ?, next_due_date = ?, updated_at = ? WHERE id = ?`
	if _, err := r.q.ExecContext(ctx, query, state.Status, state.NextDue, now, id); err != nil {
		return fmt.Errorf("update payment state: %w", err)
	}
	return nil
}

// AddToPaidAmount shifts a student's running paid total by delta, which is
// negative when a transaction is deleted.
func (r *StudentRepository) AddToPaidAmount(ctx context.Context, id string, delta int64, now models.Time) error {
	const query = `UPDATE students SET paid_amount = paid_amount + ?, updated_at = ? WHERE id = ?`
	res, err := r.q.ExecContext(ctx, query, delta, now, id)
	if err != nil {
		return fmt.Errorf("adjust paid amount: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
	}
	return nil
}

// ListAll returns every student row, for batch recomputation.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	const query = `SELECT id, name, group_id, payment_plan, plan_amount, installment_count,
        paid_amount, enrollment_date, next_due_date, payment_status, created_at, updated_at
        FROM students ORDER BY id`
	if err := r.q.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// ListByStatus returns students currently carrying the given status.
func (r *StudentRepository) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.StudentDetail, error) {
	const query = `SELECT s.id, s.name, s.group_id, s.payment_plan, s.plan_amount,
        s.installment_count, s.paid_amount, s.enrollment_date, s.next_due_date, s.payment_status,
        s.created_at, s.updated_at, g.name AS group_name
        FROM students s JOIN groups g ON g.id = s.group_id
        WHERE s.payment_status = ? ORDER BY s.next_due_date, s.name`
	var students []models.StudentDetail
	if err := r.q.SelectContext(ctx, &students, query, status); err != nil {
		return nil, fmt.Errorf("list students by status: %w", err)
	}
	return students, nil
}

// CountByGroup returns how many students reference a group.
func (r *StudentRepository) CountByGroup(ctx context.Context, groupID int64) (int, error) {
	var count int
	if err := r.q.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM students WHERE group_id = ?", groupID); err != nil {
		return 0, fmt.Errorf("count students in group: %w", err)
	}
	return count, nil
}

// ReassignGroup moves every student from one group to another and returns
// how many rows moved. Must run inside the caller's transaction.
func (r *StudentRepository) ReassignGroup(ctx context.Context, fromGroupID, toGroupID int64, now models.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE students SET group_id = ?, updated_at = ? WHERE group_id = ?",
		toGroupID, now, fromGroupID)
	if err != nil {
		return 0, fmt.Errorf("reassign group members: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign group members: %w", err)
	}
	return moved, nil
}
