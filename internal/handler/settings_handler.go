package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/gradebook"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type settingsService interface {
	Grading(ctx context.Context) (*dto.GradingSettingsResponse, error)
	UpdateWeights(ctx context.Context, weights gradebook.WeightsTable, actor *models.JWTClaims) (*dto.GradingSettingsResponse, error)
	UpdateSubjects(ctx context.Context, req dto.UpdateSubjectsRequest, actor *models.JWTClaims) (*dto.GradingSettingsResponse, error)
}

// SettingsHandler exposes the grading settings endpoints.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Grading godoc
// @Summary Current weights and subjects tables
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/grading [get]
func (h *SettingsHandler) Grading(c *gin.Context) {
	res, err := h.service.Grading(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// UpdateWeights godoc
// @Summary Replace the weights table
// @Description Accepts term -> subject -> total and the flat subject -> total shape.
// @Tags Settings
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/weights [put]
func (h *SettingsHandler) UpdateWeights(c *gin.Context) {
	var weights gradebook.WeightsTable
	if !bindJSON(c, &weights, "invalid weights payload") {
		return
	}
	res, err := h.service.UpdateWeights(c.Request.Context(), weights, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// UpdateSubjects godoc
// @Summary Replace the class subjects table
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateSubjectsRequest true "class -> subjects"
// @Success 200 {object} response.Envelope
// @Router /settings/subjects [put]
func (h *SettingsHandler) UpdateSubjects(c *gin.Context) {
	var req dto.UpdateSubjectsRequest
	if !bindJSON(c, &req, "invalid subjects payload") {
		return
	}
	res, err := h.service.UpdateSubjects(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
