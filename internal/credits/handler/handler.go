package handler

import (
	"net/http"

	"leadgen_backend/internal/credits/service"
	"leadgen_backend/internal/credits/transport"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the per-user ledger views.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", httpkit.NoStore(), h.GetCredits)
	rg.GET("/deliveries", h.ListDeliveries)
	rg.GET("/transactions", h.ListTransactions)
}

// RegisterAdminRoutes mounts operator endpoints.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/grant", h.Grant)
}

// GetCredits returns the caller's balance.
// GET /api/me/credits
func (h *Handler) GetCredits(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	balance, err := h.svc.GetBalance(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.BalanceResponse{CreditsAvailable: balance})
}

// ListDeliveries pages through what the caller has received.
// GET /api/me/deliveries
func (h *Handler) ListDeliveries(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	req, ok := h.bindList(c)
	if !ok {
		return
	}

	list, err := h.svc.ListDeliveries(c.Request.Context(), identity.UserID(), service.Page{Page: req.Page, PageSize: req.PageSize})
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.DeliveryResponse, len(list.Items))
	for i, d := range list.Items {
		items[i] = transport.ToDeliveryResponse(d)
	}
	httpkit.OK(c, transport.DeliveryListResponse{
		Items:      items,
		Total:      list.Total,
		Page:       list.Page,
		PageSize:   list.PageSize,
		TotalPages: transport.TotalPages(list.Total, list.PageSize),
	})
}

// ListTransactions pages through the caller's credit movements.
// GET /api/me/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	req, ok := h.bindList(c)
	if !ok {
		return
	}

	list, err := h.svc.ListTransactions(c.Request.Context(), identity.UserID(), service.Page{Page: req.Page, PageSize: req.PageSize})
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.TransactionResponse, len(list.Items))
	for i, t := range list.Items {
		items[i] = transport.ToTransactionResponse(t)
	}
	httpkit.OK(c, transport.TransactionListResponse{
		Items:      items,
		Total:      list.Total,
		Page:       list.Page,
		PageSize:   list.PageSize,
		TotalPages: transport.TotalPages(list.Total, list.PageSize),
	})
}

// Grant tops up a user's balance.
// POST /api/admin/credits/grant
func (h *Handler) Grant(c *gin.Context) {
	var req transport.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	balance, err := h.svc.Grant(c.Request.Context(), req.UserID, req.Amount, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.GrantResponse{UserID: req.UserID, CreditsAvailable: balance})
}

func (h *Handler) bindList(c *gin.Context) (transport.ListRequest, bool) {
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgInvalidRequest, nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, msgValidationFailed, validator.FieldErrors(err))
		return req, false
	}
	return req, true
}
