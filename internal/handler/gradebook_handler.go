package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type gradebookService interface {
	Grid(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.GradebookGrid, error)
	StageEdits(ctx context.Context, actor *models.JWTClaims, classLabel, term string, req dto.StageEditsRequest) (*dto.SessionResponse, error)
	Discard(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SessionResponse, error)
	Save(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SaveResult, error)
	Archive(ctx context.Context, actor *models.JWTClaims, classLabel, term string, skipEmpty *bool) (*dto.ArchiveResult, error)
	Summary(ctx context.Context, classLabel, term string) (*dto.ClassSummaryResponse, error)
}

type marksImporter interface {
	StageFromXLSX(ctx context.Context, actor *models.JWTClaims, classLabel, term string, r io.Reader) (*dto.ImportResult, error)
}

// GradebookHandler exposes the class gradebook endpoints.
type GradebookHandler struct {
	gradebook gradebookService
	importer  marksImporter
}

// NewGradebookHandler constructs GradebookHandler.
func NewGradebookHandler(gradebook gradebookService, importer marksImporter) *GradebookHandler {
	return &GradebookHandler{gradebook: gradebook, importer: importer}
}

// Grid godoc
// @Summary Editable gradebook grid for a class and term
// @Tags Gradebook
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{class}/{term} [get]
func (h *GradebookHandler) Grid(c *gin.Context) {
	grid, err := h.gradebook.Grid(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Param("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "pending_edits", grid.PendingEdits)
	response.JSON(c, http.StatusOK, grid, nil, middleware.ExtractMeta(c))
}

// StageEdits godoc
// @Summary Stage pending mark edits
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Param payload body dto.StageEditsRequest true "studentID -> subject -> value"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{class}/{term}/edits [put]
func (h *GradebookHandler) StageEdits(c *gin.Context) {
	var req dto.StageEditsRequest
	if !bindJSON(c, &req, "invalid edits payload") {
		return
	}
	res, err := h.gradebook.StageEdits(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Param("term"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Discard godoc
// @Summary Discard pending edits
// @Tags Gradebook
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{class}/{term}/edits [delete]
func (h *GradebookHandler) Discard(c *gin.Context) {
	res, err := h.gradebook.Discard(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Param("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Save godoc
// @Summary Merge pending edits into the roster and persist it
// @Description Returns saved=false with code NOTHING_TO_SAVE when there are no pending edits.
// @Tags Gradebook
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /gradebook/{class}/{term}/save [post]
func (h *GradebookHandler) Save(c *gin.Context) {
	res, err := h.gradebook.Save(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Param("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Archive godoc
// @Summary Archive a term into previous results
// @Tags Gradebook
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Param skip_empty query bool false "Skip students with nothing to archive"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{class}/{term}/archive [post]
func (h *GradebookHandler) Archive(c *gin.Context) {
	var skipEmpty *bool
	if raw := c.Query("skip_empty"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "skip_empty must be a boolean"))
			return
		}
		skipEmpty = &v
	}
	res, err := h.gradebook.Archive(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Param("term"), skipEmpty)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Summary godoc
// @Summary Class summary, rankings and grade distribution
// @Tags Gradebook
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{class}/{term}/summary [get]
func (h *GradebookHandler) Summary(c *gin.Context) {
	res, err := h.gradebook.Summary(c.Request.Context(), c.Param("class"), c.Param("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Import godoc
// @Summary Stage edits from an uploaded xlsx sheet
// @Tags Gradebook
// @Accept multipart/form-data
// @Produce json
// @Param class path string true "Class label"
// @Param term path string true "Term"
// @Param file formData file true "Workbook with a Student ID column followed by subject columns"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{class}/{term}/import [post]
func (h *GradebookHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	res, err := h.importer.StageFromXLSX(c.Request.Context(), claimsFromContext(c), c.Param("class"), c.Param("term"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
