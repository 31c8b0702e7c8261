package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

type Handler struct {
	services *services.Services
	tokens   *auth.TokenManager
	logger   *logrus.Logger
	now      func() time.Time
}

func NewHandler(svc *services.Services, tokens *auth.TokenManager, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{services: svc, tokens: tokens, logger: logger, now: time.Now}
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type ReleaseRequest struct {
	EndDate string `json:"end_date"`
}

type PaymentMethodRequest struct {
	Code string `json:"code" binding:"required"`
}

type MeResponse struct {
	User   models.User    `json:"user"`
	Agency *models.Agency `json:"agency,omitempty"`
	Owner  *models.Owner  `json:"owner,omitempty"`
}

type Page struct {
	Results    interface{}             `json:"results"`
	Pagination models.PaginationResult `json:"pagination"`
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", name)})
		return 0, false
	}
	return uint(id), true
}

// optionalID reads a numeric query parameter, zero when absent.
func optionalID(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, services.NewValidationError(name, "must be a positive number")
	}
	return uint(id), nil
}

func pagination(c *gin.Context) models.PaginationQuery {
	var q models.PaginationQuery
	// Invalid values fall back to the first page.
	_ = c.ShouldBindQuery(&q)
	return q
}

// monthQuery reads ?month=, defaulting to the current month.
func (h *Handler) monthQuery(c *gin.Context) (models.Month, error) {
	raw := c.Query("month")
	if raw == "" {
		return models.MonthOf(h.now()), nil
	}
	m, err := models.ParseMonth(raw)
	if err != nil {
		return models.Month{}, services.NewValidationError("month", err.Error())
	}
	return m, nil
}

// formFile returns the uploaded file of field, or nil when none was sent.
// The caller closes the returned closer.
func formFile(c *gin.Context, field string) (*storage.Upload, io.Closer, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nopCloser{}, nil
	}
	if err != nil {
		return nil, nopCloser{}, services.NewValidationError(field, "could not read the uploaded file")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*storage.Upload, io.Closer, error) {
	f, err := header.Open()
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("failed to open upload: %w", err)
	}
	return &storage.Upload{Name: header.Filename, Size: header.Size, Reader: f}, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Register(c *gin.Context) {
	var in services.RegisterAgencyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	user, err := h.services.Accounts.RegisterAgency(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	result, err := h.services.Accounts.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Me(c *gin.Context) {
	actor := currentActor(c)
	c.JSON(http.StatusOK, MeResponse{User: actor.User, Agency: actor.Agency, Owner: actor.Owner})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	result, err := h.services.Accounts.ChangePassword(c.Request.Context(), currentActor(c), req.OldPassword, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var in services.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	user, err := h.services.Accounts.UpdateProfile(c.Request.Context(), currentActor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateAgencyProfile(c *gin.Context) {
	var in services.AgencyProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	agency, err := h.services.Accounts.UpdateAgencyProfile(c.Request.Context(), currentActor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

func (h *Handler) UploadProfilePhoto(c *gin.Context) {
	photo, closer, err := formFile(c, "photo")
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer closer.Close()
	if photo == nil {
		h.respondError(c, services.NewValidationError("photo", "no file was submitted"))
		return
	}

	user, err := h.services.Accounts.SetProfilePhoto(c.Request.Context(), currentActor(c), photo)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Dashboard(c *gin.Context) {
	dashboard, err := h.services.Reports.Dashboard(c.Request.Context(), currentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
