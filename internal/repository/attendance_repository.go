package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/markazapp/markaz-core/internal/models"
)

// AttendanceRepository manages persistence for attendance records.
type AttendanceRepository struct {
	q Queryer
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{q: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *AttendanceRepository) WithTx(tx *sqlx.Tx) *AttendanceRepository {
	return &AttendanceRepository{q: tx}
}

// FindByStudentAndDate returns the record for a (student, day) pair, or nil
// when the student has not been marked present that day.
func (r *AttendanceRepository) FindByStudentAndDate(ctx context.Context, studentID string, date models.Date) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.q.GetContext(ctx, &record,
		"SELECT id, student_id, date, created_at FROM attendance WHERE student_id = ? AND date = ?",
		studentID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// Create inserts an attendance record and fills in its generated ID. The
// UNIQUE(student_id, date) constraint is the last line of defence against
// duplicates racing past the service-level guard.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO attendance (student_id, date, created_at) VALUES (?, ?, ?)",
		record.StudentID, record.Date, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	record.ID = id
	return nil
}

// Delete removes one attendance record by ID.
func (r *AttendanceRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM attendance WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	return n > 0, nil
}

// ListByStudent returns a student's attendance history, newest first,
// optionally bounded by an inclusive date range.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, from, to *models.Date) ([]models.AttendanceRecord, error) {
	query := "SELECT id, student_id, date, created_at FROM attendance WHERE student_id = ?"
	args := []interface{}{studentID}
	if from != nil {
		query += " AND date >= ?"
		args = append(args, *from)
	}
	if to != nil {
		query += " AND date <= ?"
		args = append(args, *to)
	}
	query += " ORDER BY date DESC"

	var records []models.AttendanceRecord
	if err := r.q.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// ListByDate returns everyone marked present on a day, with names for the
// daily overview screen.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date models.Date) ([]models.DailyAttendance, error) {
	const query = `SELECT a.student_id, s.name AS student_name, g.name AS group_name, a.date, a.created_at
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN groups g ON g.id = s.group_id
        WHERE a.date = ? ORDER BY s.name`
	var records []models.DailyAttendance
	if err := r.q.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("list daily attendance: %w", err)
	}
	return records, nil
}

// Stats summarises one student's attendance history.
func (r *AttendanceRepository) Stats(ctx context.Context, studentID string) (*models.AttendanceStats, error) {
	const query = `SELECT ? AS student_id, COUNT(*) AS total_days,
        MIN(date) AS first_date, MAX(date) AS last_date
        FROM attendance WHERE student_id = ?`
	var stats models.AttendanceStats
	if err := r.q.GetContext(ctx, &stats, query, studentID, studentID); err != nil {
		return nil, fmt.Errorf("attendance stats: %w", err)
	}
	return &stats, nil
}

// CountByDate returns how many students were present on a day.
func (r *AttendanceRepository) CountByDate(ctx context.Context, date models.Date) (int, error) {
	var count int
	if err := r.q.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM attendance WHERE date = ?", date); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
