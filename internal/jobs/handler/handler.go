package handler

import (
	"net/http"
	"slices"

	"leadgen_backend/internal/jobs/service"
	"leadgen_backend/internal/jobs/transport"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc          *service.Service
	val          *validator.Validator
	defaultLimit int
}

func New(svc *service.Service, val *validator.Validator, defaultLimit int) *Handler {
	if defaultLimit < 1 {
		defaultLimit = 3
	}
	return &Handler{svc: svc, val: val, defaultLimit: defaultLimit}
}

// RegisterRoutes mounts the job endpoints. submitMiddleware runs before Submit only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, submitMiddleware ...gin.HandlerFunc) {
	rg.POST("/search/jobs", slices.Concat(submitMiddleware, []gin.HandlerFunc{h.Submit})...)
	rg.GET("/search/jobs", httpkit.NoStore(), h.List)
	rg.GET("/search/jobs/:id", httpkit.NoStore(), h.Get)
}

// Submit queues a search and returns its handle.
// POST /api/search/jobs
func (h *Handler) Submit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	limit := h.defaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	job, err := h.svc.Submit(c.Request.Context(), identity.UserID(), service.SubmitInput{Query: req.Query, Limit: limit})
	if httpkit.HandleError(c, err) {
		return
	}

	statusURL := "/api/search/jobs/" + job.ID.String()
	c.Header("Location", statusURL)
	httpkit.JSON(c, http.StatusAccepted, transport.SubmitResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		StatusURL: statusURL,
	})
}

// Get returns one of the caller's jobs.
// GET /api/search/jobs/:id
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, "invalid job id", nil)
		return
	}

	job, err := h.svc.Get(c.Request.Context(), identity.UserID(), jobID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

// List pages through the caller's jobs.
// GET /api/search/jobs
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	list, err := h.svc.List(c.Request.Context(), identity.UserID(), service.Page{Page: req.Page, PageSize: req.PageSize})
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.JobResponse, len(list.Items))
	for i, job := range list.Items {
		items[i] = transport.ToJobResponse(job)
	}
	httpkit.OK(c, transport.JobListResponse{
		Items:      items,
		Total:      list.Total,
		Page:       list.Page,
		PageSize:   list.PageSize,
		TotalPages: transport.TotalPages(list.Total, list.PageSize),
	})
}
