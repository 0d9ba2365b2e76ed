package handler

import (
	"net/http"
	"slices"

	"leadgen_backend/internal/leads/export"
	"leadgen_backend/internal/leads/service"
	"leadgen_backend/internal/leads/transport"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgExportFailed     = "could not build export"

	exportFilename = "leads.csv"
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

// RegisterRoutes mounts the search and export endpoints. searchMiddleware runs
// before the search handler only (request replay protection).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, searchMiddleware ...gin.HandlerFunc) {
	rg.POST("/search", slices.Concat(searchMiddleware, []gin.HandlerFunc{h.Search})...)
	rg.POST("/export-csv", h.ExportCSV)
}

func (h *Handler) Search(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.SearchRequest
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

	result, err := h.svc.Search(c.Request.Context(), identity.UserID(), service.SearchInput{
		Query:   req.Query,
		Limit:   limit,
		Exclude: req.Exclude,
	})
	if err != nil && result != nil {
		writeBillingFailure(c, result, err)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewSearchResponse(result))
}

// writeBillingFailure reports an unbilled search: the error code and status
// come from err, the body still lists the (redacted) matches.
func writeBillingFailure(c *gin.Context, result *service.SearchResult, err error) {
	_ = c.Error(err)

	resp := transport.NewSearchResponse(result)
	status := http.StatusInternalServerError
	resp.Error = apperr.CodeLedgerError
	resp.Message = "billing could not be completed"
	if domainErr, ok := apperr.As(err); ok {
		status = domainErr.HTTPStatus()
		resp.Error = domainErr.ErrorCode()
		resp.Message = domainErr.Message
	}
	c.AbortWithStatusJSON(status, resp)
}

func (h *Handler) ExportCSV(c *gin.Context) {
	if httpkit.MustGetIdentity(c) == nil {
		return
	}

	var req transport.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	body, err := export.CSV(transport.ToDomainList(req.Results))
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, msgExportFailed, err).WithOp("leads.ExportCSV"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}
