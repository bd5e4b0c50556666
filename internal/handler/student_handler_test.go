package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type studentPortalMock struct {
	filter      models.StudentFilter
	month       string
	payment     dto.PayFeeRequest
	attendance  dto.MarkAttendanceRequest
	reportTerm  string
	reportError error
}

func (m *studentPortalMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.filter = filter
	return []models.Student{{ID: "STU-2024-0001", Name: "Ada", Grade: "10A"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *studentPortalMock) Get(ctx context.Context, id string) (*models.Student, error) {
	if id != "STU-2024-0001" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &models.Student{ID: id, Name: "Ada"}, nil
}

func (m *studentPortalMock) Mark(ctx context.Context, actor *models.JWTClaims, studentID string, req dto.MarkAttendanceRequest) (*dto.AttendanceResponse, error) {
	m.attendance = req
	return &dto.AttendanceResponse{StudentID: studentID}, nil
}

func (m *studentPortalMock) Ledger(ctx context.Context, studentID string) (*dto.FeeLedgerResponse, error) {
	return &dto.FeeLedgerResponse{StudentID: studentID}, nil
}

func (m *studentPortalMock) Pay(ctx context.Context, actor *models.JWTClaims, studentID, month string, req dto.PayFeeRequest) (*dto.FeeLedgerResponse, error) {
	m.month = month
	m.payment = req
	return &dto.FeeLedgerResponse{StudentID: studentID}, nil
}

func (m *studentPortalMock) ReportCard(ctx context.Context, studentID, term string) (*dto.ReportCard, error) {
	m.reportTerm = term
	if m.reportError != nil {
		return nil, m.reportError
	}
	return &dto.ReportCard{StudentID: studentID, Term: term}, nil
}

func newStudentHandler(mock *studentPortalMock) *StudentHandler {
	return NewStudentHandler(mock, mock, mock, mock)
}

func TestStudentHandlerListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &studentPortalMock{}
	handler := newStudentHandler(mock)

	c, w := newGinContext(http.MethodGet, "/students?class=10A&search=%20ada%20&page=2&limit=5", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10A", mock.filter.Grade)
	assert.Equal(t, "ada", mock.filter.Search)
	assert.Equal(t, 2, mock.filter.Page)
	assert.Equal(t, 5, mock.filter.PageSize)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandler(&studentPortalMock{})

	c, w := newGinContext(http.MethodGet, "/students/STU-2024-9999", nil)
	c.Params = gin.Params{{Key: "id", Value: "STU-2024-9999"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerPayFee(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &studentPortalMock{}
	handler := newStudentHandler(mock)

	c, w := newGinContext(http.MethodPost, "/students/STU-2024-0001/fees/2024-03/pay", []byte(`{"amount": 40}`))
	c.Params = gin.Params{{Key: "id", Value: "STU-2024-0001"}, {Key: "month", Value: "2024-03"}}
	handler.PayFee(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03", mock.month)
	assert.Equal(t, 40.0, mock.payment.Amount)
}

func TestStudentHandlerMarkAttendanceInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandler(&studentPortalMock{})

	c, w := newGinContext(http.MethodPost, "/students/STU-2024-0001/attendance", []byte(`{`))
	c.Params = gin.Params{{Key: "id", Value: "STU-2024-0001"}}
	handler.MarkAttendance(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerReportCardRequiresTerm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &studentPortalMock{}
	handler := newStudentHandler(mock)

	c, w := newGinContext(http.MethodGet, "/students/STU-2024-0001/report-card", nil)
	c.Params = gin.Params{{Key: "id", Value: "STU-2024-0001"}}
	handler.ReportCard(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/students/STU-2024-0001/report-card?term=Term%201", nil)
	c.Params = gin.Params{{Key: "id", Value: "STU-2024-0001"}}
	handler.ReportCard(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Term 1", mock.reportTerm)
}
