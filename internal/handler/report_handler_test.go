package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/petcare-api/internal/middleware"
	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/internal/service"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

type reportServiceMock struct {
	createResp   *service.ReportJobSummary
	createErr    error
	statusResp   *service.ReportJobSummary
	statusErr    error
	download     *service.ReportDownload
	downloadErr  error
	lastActorID  string
	lastRole     models.UserRole
	createCalled bool
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req service.CreateReportRequest, actorID string) (*service.ReportJobSummary, error) {
	m.createCalled = true
	m.lastActorID = actorID
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*service.ReportJobSummary, error) {
	m.lastActorID = actorID
	m.lastRole = role
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func TestReportHandlerCreateQueuesJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &service.ReportJobSummary{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateReportRequest{
		Type:   models.ReportTypeOccupancy,
		From:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		Format: models.ReportFormatCSV,
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, mockSvc.createCalled)
	assert.Equal(t, "mgr-1", mockSvc.lastActorID)
}

func TestReportHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerStatusForwardsRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		statusResp: &service.ReportJobSummary{ID: "job-1", Status: models.ReportStatusFinished},
	}
	handler := NewReportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})

	handler.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staff-1", mockSvc.lastActorID)
	assert.Equal(t, models.RoleStaff, mockSvc.lastRole)
}

func TestReportHandlerStatusServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{statusErr: appErrors.ErrForbidden})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-2", Role: models.RoleStaff})

	handler.Status(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerDownloadServesFile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "occupancy.csv")
	require.NoError(t, os.WriteFile(path, []byte("Day,Occupied,Capacity\n"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewReportHandler(&reportServiceMock{
		download: &service.ReportDownload{
			File:     file,
			Filename: "occupancy.csv",
			Format:   models.ReportFormatCSV,
		},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/export/token-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "occupancy.csv")
	assert.Contains(t, w.Body.String(), "Day,Occupied,Capacity")
}
