package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type admissionService interface {
	Admit(ctx context.Context, actor *models.JWTClaims, req dto.AdmissionRequest) (*dto.AdmissionResponse, error)
}

// AdmissionHandler exposes the admissions intake.
type AdmissionHandler struct {
	service admissionService
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(service admissionService) *AdmissionHandler {
	return &AdmissionHandler{service: service}
}

// Admit godoc
// @Summary Admit a new student
// @Description Generates the student ID and appends the student to the roster.
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.AdmissionRequest true "Admission form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Admit(c *gin.Context) {
	var req dto.AdmissionRequest
	if !bindJSON(c, &req, "invalid admission payload") {
		return
	}
	res, err := h.service.Admit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
