package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ndquoc/ticket-rush/internal/auth"
	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/core/service"
)

type HTTPHandler struct {
	purchases *service.PurchaseService
	tickets   *service.TicketService
	auth      *auth.Service
}

func NewHTTPHandler(purchases *service.PurchaseService, tickets *service.TicketService, authSvc *auth.Service) *HTTPHandler {
	return &HTTPHandler{
		purchases: purchases,
		tickets:   tickets,
		auth:      authSvc,
	}
}

// Register wires all routes. rateLimit guards the purchase route only.
func (h *HTTPHandler) Register(router *gin.Engine, rateLimit gin.HandlerFunc) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", h.Login)
	v1.GET("/tickets", h.ListTickets)
	v1.GET("/tickets/:id", h.GetTicket)

	authed := v1.Group("", auth.Middleware(h.auth))
	authed.POST("/tickets", h.CreateTicket)
	authed.POST("/tickets/:id/cache", h.InitStockCache)
	authed.POST("/tickets/:id/purchase", rateLimit, h.Purchase)
	authed.GET("/orders/:orderSN", h.GetOrder)
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var creds auth.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.auth.Login(creds)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *HTTPHandler) ListTickets(c *gin.Context) {
	tickets, err := h.tickets.ListTickets(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTicketResponses(tickets))
}

func (h *HTTPHandler) GetTicket(c *gin.Context) {
	ticket, err := h.tickets.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTicketResponse(*ticket))
}

type createTicketRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	TotalStock  int    `json:"total_stock"`
}

func (h *HTTPHandler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ticket, err := h.tickets.CreateTicket(c.Request.Context(), &domain.Ticket{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		TotalStock:  req.TotalStock,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTicketResponse(*ticket))
}

func (h *HTTPHandler) InitStockCache(c *gin.Context) {
	if err := h.tickets.InitStockCache(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type purchaseRequest struct {
	Quantity int    `json:"quantity"`
	Strategy string `json:"strategy"`
}

func (h *HTTPHandler) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	strategy := service.Strategy(req.Strategy)
	if strategy == "" {
		strategy = service.StrategyCache
	}

	result, err := h.purchases.Purchase(c.Request.Context(), service.PurchaseRequest{
		TicketID: c.Param("id"),
		BuyerID:  auth.BuyerID(c),
		Quantity: req.Quantity,
		Strategy: strategy,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if result.Processing {
		c.JSON(http.StatusAccepted, gin.H{
			"success":  true,
			"order_sn": result.OrderSN,
			"status":   "processing",
			"note":     "order is being processed, poll it shortly",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   toOrderResponse(*result.Order),
	})
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.purchases.GetOrder(c.Request.Context(), c.Param("orderSN"))
	if errors.Is(err, domain.ErrOrderNotFound) {
		// Async commits land after the purchase returns; an absent order is
		// still in flight from the caller's point of view.
		c.JSON(http.StatusOK, gin.H{
			"status":  "processing",
			"message": "order is being processed, try again shortly",
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": string(order.Status),
		"order":  toOrderResponse(*order),
	})
}

// writeError maps domain error kinds onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTicketNotFound), errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": "not_found"})
	case errors.Is(err, domain.ErrInsufficientStock):
		c.JSON(http.StatusGone, gin.H{"error": "sold out", "kind": "insufficient_stock"})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "too much contention, try again", "kind": "conflict"})
	case errors.Is(err, domain.ErrStockNotInitialized):
		c.JSON(http.StatusConflict, gin.H{"error": "sale not open for this ticket", "kind": "not_initialized"})
	case errors.Is(err, domain.ErrStatusUnknown):
		c.JSON(http.StatusAccepted, gin.H{"error": "status unknown, check your order", "kind": "status_unknown"})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_request"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": "system_error"})
	}
}
