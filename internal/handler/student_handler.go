package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type studentQueryService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
}

type attendanceMarker interface {
	Mark(ctx context.Context, actor *models.JWTClaims, studentID string, req dto.MarkAttendanceRequest) (*dto.AttendanceResponse, error)
}

type feeLedgerService interface {
	Ledger(ctx context.Context, studentID string) (*dto.FeeLedgerResponse, error)
	Pay(ctx context.Context, actor *models.JWTClaims, studentID, month string, req dto.PayFeeRequest) (*dto.FeeLedgerResponse, error)
}

type reportCardService interface {
	ReportCard(ctx context.Context, studentID, term string) (*dto.ReportCard, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students    studentQueryService
	attendance  attendanceMarker
	fees        feeLedgerService
	reportCards reportCardService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentQueryService, attendance attendanceMarker, fees feeLedgerService, reportCards reportCardService) *StudentHandler {
	return &StudentHandler{students: students, attendance: attendance, fees: fees, reportCards: reportCards}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or student ID"
// @Param class query string false "Filter by class label"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Grade = strings.TrimSpace(c.Query("class"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// MarkAttendance godoc
// @Summary Mark a day of attendance
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [post]
func (h *StudentHandler) MarkAttendance(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	res, err := h.attendance.Mark(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Fees godoc
// @Summary Fee ledger of a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/fees [get]
func (h *StudentHandler) Fees(c *gin.Context) {
	ledger, err := h.fees.Ledger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// PayFee godoc
// @Summary Record a fee payment for a month
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param month path string true "Month (YYYY-MM)"
// @Param payload body dto.PayFeeRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/fees/{month}/pay [post]
func (h *StudentHandler) PayFee(c *gin.Context) {
	var req dto.PayFeeRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	ledger, err := h.fees.Pay(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("month"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// ReportCard godoc
// @Summary Report card of a student for a term
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param term query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/report-card [get]
func (h *StudentHandler) ReportCard(c *gin.Context) {
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term required"))
		return
	}
	card, err := h.reportCards.ReportCard(c.Request.Context(), c.Param("id"), term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}
