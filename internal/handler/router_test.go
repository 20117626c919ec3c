package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/lockguard"
	"github.com/markazapp/markaz-core/internal/migrate"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/internal/service"
	"github.com/markazapp/markaz-core/pkg/config"
	"github.com/markazapp/markaz-core/pkg/database"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
	Pagination *struct {
		Page       int `json:"page"`
		TotalCount int `json:"total_count"`
	} `json:"pagination"`
}

// newTestRouter wires the full stack over a migrated temp database, the same
// way main does.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	validate := validator.New()
	metrics := service.NewMetricsService()
	students := service.NewStudentService(db, studentRepo, groupRepo, settingsRepo, auditRepo, validate, logger)
	groups := service.NewGroupService(db, groupRepo, studentRepo, auditRepo, logger)
	attendance := service.NewAttendanceService(db, attendanceRepo, studentRepo, lockguard.New(), time.Second, logger)
	payments := service.NewPaymentService(db, paymentRepo, studentRepo, settingsRepo, auditRepo, logger)
	settings := service.NewSettingsService(db, settingsRepo, auditRepo, nil, logger)
	audit := service.NewAuditService(auditRepo, logger)
	maintenance := service.NewMaintenanceService(db, filepath.Join(t.TempDir(), "test.db"), logger)

	r := gin.New()
	RegisterRoutes(r.Group(""), Handlers{
		Students:    NewStudentHandler(students),
		Groups:      NewGroupHandler(groups),
		Attendance:  NewAttendanceHandler(attendance, metrics),
		Payments:    NewPaymentHandler(payments, metrics),
		Settings:    NewSettingsHandler(settings),
		Schema:      NewSchemaHandler(service.NewSchemaService(runner)),
		Maintenance: NewMaintenanceHandler(maintenance, attendance, metrics),
		Audit:       NewAuditHandler(audit),
		Metrics:     metrics,
	})
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestStudentLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, env := doJSON(t, r, http.MethodPost, "/students", gin.H{
		"name":         "Amina Yusuf",
		"group_id":     1,
		"payment_plan": "monthly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "STU000001", created["id"])
	assert.Equal(t, "pending", created["payment_status"])
	assert.Equal(t, "Group A", created["group_name"])

	rec, env = doJSON(t, r, http.MethodGet, "/students/STU000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/students?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)

	rec, _ = doJSON(t, r, http.MethodDelete, "/students/STU000001", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/students/STU000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCreateStudentValidationDetailsOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, env := doJSON(t, r, http.MethodPost, "/students", gin.H{
		"name":         "",
		"group_id":     999,
		"payment_plan": "weekly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Len(t, env.Error.Details, 3)
}

func TestMarkAttendanceIdempotentOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/students", gin.H{
		"name": "Bilal Ahmed", "group_id": 1, "payment_plan": "one-time",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, r, http.MethodPost, "/attendance", gin.H{"student_id": "STU000001"})
	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Equal(t, false, first["already_marked"])

	rec, env = doJSON(t, r, http.MethodPost, "/attendance", gin.H{"student_id": "STU000001"})
	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, true, second["already_marked"])
}

func TestRecordPaymentSettlesOneTimePlanOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/students", gin.H{
		"name": "Hana Khalid", "group_id": 1, "payment_plan": "one-time",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, r, http.MethodPost, "/payments", gin.H{
		"student_id": "STU000001", "amount": 6000, "payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/students/STU000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var student map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &student))
	assert.Equal(t, "paid", student["payment_status"])
	assert.Nil(t, student["next_due_date"])
}

func TestDeleteGroupWithMembersNeedsTargetOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/students", gin.H{
		"name": "Sara Noor", "group_id": 1, "payment_plan": "monthly",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, r, http.MethodDelete, "/groups/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = doJSON(t, r, http.MethodDelete, "/groups/1?reassignTo=2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/students/STU000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var student map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &student))
	assert.Equal(t, float64(2), student["group_id"])
}

func TestSchemaInfoOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, env := doJSON(t, r, http.MethodGet, "/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, true, info["is_up_to_date"])
}

func TestSettingsRoundTripOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec, env := doJSON(t, r, http.MethodGet, "/settings/payment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, float64(7), settings["reminder_days"])

	rec, env = doJSON(t, r, http.MethodPut, "/settings/payment", gin.H{
		"one_time_amount": 7000, "monthly_amount": 900, "installment_amount": 3000,
		"installment_interval_months": 3, "reminder_days": 10, "payment_threshold": 7000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, float64(10), settings["reminder_days"])

	rec, env = doJSON(t, r, http.MethodGet, "/audit?table=payment_settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 1)
}

func TestUnmatchedRouteReturns404(t *testing.T) {
	r := newTestRouter(t)
	rec, _ := doJSON(t, r, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
