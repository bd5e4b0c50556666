package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type gradebookServiceMock struct {
	saveResult *dto.SaveResult
	saveErr    error
	skipEmpty  *bool
	staged     dto.StageEditsRequest
	class      string
	term       string
}

func (m *gradebookServiceMock) Grid(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.GradebookGrid, error) {
	m.class, m.term = classLabel, term
	return &dto.GradebookGrid{ClassLabel: classLabel, Term: term, PendingEdits: 2}, nil
}

func (m *gradebookServiceMock) StageEdits(ctx context.Context, actor *models.JWTClaims, classLabel, term string, req dto.StageEditsRequest) (*dto.SessionResponse, error) {
	m.staged = req
	return &dto.SessionResponse{ClassLabel: classLabel, Term: term, PendingEdits: len(req.Edits)}, nil
}

func (m *gradebookServiceMock) Discard(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SessionResponse, error) {
	return &dto.SessionResponse{ClassLabel: classLabel, Term: term}, nil
}

func (m *gradebookServiceMock) Save(ctx context.Context, actor *models.JWTClaims, classLabel, term string) (*dto.SaveResult, error) {
	return m.saveResult, m.saveErr
}

func (m *gradebookServiceMock) Archive(ctx context.Context, actor *models.JWTClaims, classLabel, term string, skipEmpty *bool) (*dto.ArchiveResult, error) {
	m.skipEmpty = skipEmpty
	return &dto.ArchiveResult{ClassLabel: classLabel, Term: term, Archived: 3}, nil
}

func (m *gradebookServiceMock) Summary(ctx context.Context, classLabel, term string) (*dto.ClassSummaryResponse, error) {
	return &dto.ClassSummaryResponse{}, nil
}

type importerMock struct {
	payload []byte
}

func (m *importerMock) StageFromXLSX(ctx context.Context, actor *models.JWTClaims, classLabel, term string, r io.Reader) (*dto.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.payload = data
	return &dto.ImportResult{Staged: 1}, nil
}

func gradebookContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	c, w := newGinContext(method, path, body)
	c.Params = gin.Params{{Key: "class", Value: "10A"}, {Key: "term", Value: "Term 1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher})
	return c, w
}

func TestGradebookHandlerGridAddsPendingMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &gradebookServiceMock{}
	handler := NewGradebookHandler(mock, &importerMock{})

	c, w := gradebookContext(http.MethodGet, "/gradebook/10A/Term%201", nil)
	handler.Grid(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Term 1", mock.term)
	assert.Contains(t, w.Body.String(), `"pending_edits":2`)
}

func TestGradebookHandlerStageEdits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &gradebookServiceMock{}
	handler := NewGradebookHandler(mock, &importerMock{})

	c, w := gradebookContext(http.MethodPut, "/gradebook/10A/Term%201/edits", []byte(`{"edits": {"STU-2024-0001": {"Math": "42"}}}`))
	handler.StageEdits(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LenientFloat(42), mock.staged.Edits["STU-2024-0001"]["Math"])
}

func TestGradebookHandlerSaveNothingToSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &gradebookServiceMock{saveResult: &dto.SaveResult{Saved: false, Code: appErrors.ErrNothingToSave.Code}}
	handler := NewGradebookHandler(mock, &importerMock{})

	c, w := gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/save", nil)
	handler.Save(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NOTHING_TO_SAVE")
}

func TestGradebookHandlerSaveFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &gradebookServiceMock{saveErr: appErrors.Clone(appErrors.ErrRosterUnavailable, "failed to save roster; pending edits were kept")}
	handler := NewGradebookHandler(mock, &importerMock{})

	c, w := gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/save", nil)
	handler.Save(c)

	assert.Equal(t, appErrors.ErrRosterUnavailable.Status, w.Code)
}

func TestGradebookHandlerArchiveSkipEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &gradebookServiceMock{}
	handler := NewGradebookHandler(mock, &importerMock{})

	c, w := gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/archive?skip_empty=true", nil)
	handler.Archive(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.skipEmpty)
	assert.True(t, *mock.skipEmpty)

	c, w = gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/archive", nil)
	handler.Archive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mock.skipEmpty)

	c, w = gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/archive?skip_empty=maybe", nil)
	handler.Archive(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradebookHandlerImport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	importer := &importerMock{}
	handler := NewGradebookHandler(&gradebookServiceMock{}, importer)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "marks.xlsx")
	require.NoError(t, err)
	_, _ = part.Write([]byte("workbook"))
	require.NoError(t, writer.Close())

	c, w := gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/import", body.Bytes())
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	handler.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "workbook", string(importer.payload))
}

func TestGradebookHandlerImportRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGradebookHandler(&gradebookServiceMock{}, &importerMock{})

	c, w := gradebookContext(http.MethodPost, "/gradebook/10A/Term%201/import", nil)
	handler.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
