package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/lockguard"
	"github.com/markazapp/markaz-core/internal/migrate"
	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/pkg/config"
	"github.com/markazapp/markaz-core/pkg/database"
)

// testEnv wires the full service stack over a migrated temp database, the
// same way main does at startup.
type testEnv struct {
	db         *sqlx.DB
	students   *StudentService
	groups     *GroupService
	attendance *AttendanceService
	payments   *PaymentService
	settings   *SettingsService
	audit      *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	runner, err := migrate.NewRunner(db, zap.NewNop(), migrate.Catalog())
	require.NoError(t, err)
	_, err = runner.ApplyPending(context.Background())
	require.NoError(t, err)

	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	logger := zap.NewNop()
	return &testEnv{
		db:       db,
		students: NewStudentService(db, studentRepo, groupRepo, settingsRepo, auditRepo, nil, logger),
		groups:   NewGroupService(db, groupRepo, studentRepo, auditRepo, logger),
		attendance: NewAttendanceService(db, attendanceRepo, studentRepo,
			lockguard.New(), time.Second, logger),
		payments: NewPaymentService(db, paymentRepo, studentRepo, settingsRepo, auditRepo, logger),
		settings: NewSettingsService(db, settingsRepo, auditRepo, nil, logger),
		audit:    NewAuditService(auditRepo, logger),
	}
}

// mustCreateStudent registers a student in the default seeded group.
func (e *testEnv) mustCreateStudent(t *testing.T, plan models.PaymentPlan, planAmount int64, installments *int) *models.StudentDetail {
	t.Helper()
	detail, err := e.students.Create(context.Background(), CreateStudentRequest{
		Name:             "Test Student",
		GroupID:          1,
		PaymentPlan:      plan,
		PlanAmount:       &planAmount,
		InstallmentCount: installments,
		EnrollmentDate:   models.Today(),
	})
	require.NoError(t, err)
	return detail
}

func intPtr(n int) *int { return &n }

func int64Ptr(n int64) *int64 { return &n }
