package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/lockguard"
	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// AttendanceService marks and queries attendance. Marking serialises per
// student through the keyed guard, so a double-read of a barcode produces
// one row and one AlreadyMarked result instead of a duplicate.
type AttendanceService struct {
	db          *sqlx.DB
	attendance  *repository.AttendanceRepository
	students    *repository.StudentRepository
	guard       *lockguard.KeyedMutex
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	db *sqlx.DB,
	attendance *repository.AttendanceRepository,
	students *repository.StudentRepository,
	guard *lockguard.KeyedMutex,
	lockTimeout time.Duration,
	logger *zap.Logger,
) *AttendanceService {
	if guard == nil {
		guard = lockguard.New()
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		db: db, attendance: attendance, students: students,
		guard: guard, lockTimeout: lockTimeout, logger: logger,
	}
}

// Mark records a student present on a day. Marking the same (student, day)
// twice returns AlreadyMarked, which is a defined result, not an error.
func (s *AttendanceService) Mark(ctx context.Context, studentID string, date models.Date) (*models.MarkResult, error) {
	if date.IsZero() {
		date = models.Today()
	}

	g, err := s.guard.Acquire(ctx, studentID, s.lockTimeout)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrLockTimeout) {
			s.logger.Warn("attendance lock timeout", zap.String("student_id", studentID))
		}
		return nil, err
	}
	defer g.Release()

	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, err
	}

	existing, err := s.attendance.FindByStudentAndDate(ctx, studentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if existing != nil {
		return &models.MarkResult{Record: existing, AlreadyMarked: true}, nil
	}

	record := &models.AttendanceRecord{
		StudentID: studentID,
		Date:      date,
		CreatedAt: models.Now(),
	}
	if err := s.attendance.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.logger.Info("attendance marked",
		zap.String("student_id", studentID), zap.String("date", date.String()))
	return &models.MarkResult{Record: record}, nil
}

// Unmark removes one attendance record by ID.
func (s *AttendanceService) Unmark(ctx context.Context, id int64) error {
	deleted, err := s.attendance.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return nil
}

// HistoryByStudent returns a student's attendance, newest first, optionally
// bounded by an inclusive date range.
func (s *AttendanceService) HistoryByStudent(ctx context.Context, studentID string, from, to *models.Date) ([]models.AttendanceRecord, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, err
	}
	records, err := s.attendance.ListByStudent(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return records, nil
}

// ByDate returns everyone present on a day.
func (s *AttendanceService) ByDate(ctx context.Context, date models.Date) ([]models.DailyAttendance, error) {
	records, err := s.attendance.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily attendance")
	}
	return records, nil
}

// Stats summarises one student's attendance history.
func (s *AttendanceService) Stats(ctx context.Context, studentID string) (*models.AttendanceStats, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, err
	}
	stats, err := s.attendance.Stats(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance stats")
	}
	return stats, nil
}

// GuardStats exposes the lock guard state for the maintenance surface.
func (s *AttendanceService) GuardStats() lockguard.Stats {
	return s.guard.Stats()
}
