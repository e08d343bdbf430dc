// Package server exposes the fund transaction engine over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "fundvest/internal/errors"
	"fundvest/internal/engine"
	"fundvest/internal/models"
	"fundvest/internal/store"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	engine *engine.Engine
	store  store.Store
	logger zerolog.Logger
	secret []byte
}

// New creates an HTTP server over the engine and store.
func New(e *engine.Engine, s store.Store, logger zerolog.Logger, jwtSecret string) *Server {
	return &Server{
		engine: e,
		store:  s,
		logger: logger,
		secret: []byte(jwtSecret),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID())

	r.GET("/health", s.health)

	api := r.Group("/api", AuthMiddleware(s.secret))
	api.POST("/funds/buy", s.buy)
	api.POST("/funds/sell", s.sell)
	api.GET("/orders/:orderId", s.orderStatus)
	api.GET("/portfolio", s.portfolio)
	api.GET("/sips", s.listPlans)
	api.PUT("/sips/:id/pause", s.pausePlan)
	api.PUT("/sips/:id/resume", s.resumePlan)
	api.DELETE("/sips/:id", s.cancelPlan)

	return r
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("X-Request-ID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type buyRequest struct {
	FundName string  `json:"fundName"`
	Amount   float64 `json:"amount"`
	IsSIP    bool    `json:"isSIP"`
	SIPDate  int     `json:"sipDate"`
}

func (s *Server) buy(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeFailure(c, http.StatusUnauthorized, "Missing user")
		return
	}

	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FundName == "" {
		writeFailure(c, http.StatusBadRequest, "Invalid request")
		return
	}

	sipDay := 0
	if req.IsSIP {
		sipDay = req.SIPDate
	}

	result, err := s.engine.SubmitBuy(c.Request.Context(), userID, req.FundName, decimal.NewFromFloat(req.Amount), sipDay)
	if err != nil {
		var verr *apperrors.ValidationError
		if apperrors.As(err, &verr) {
			writeFailure(c, http.StatusBadRequest, verr.Message)
			return
		}
		s.logger.Error().Err(err).Str("fund", req.FundName).Msg("Buy order failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to create buy order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orderId": result.OrderID,
		"message": "Buy order created successfully",
		"units":   result.Units.StringFixed(4),
	})
}

type sellRequest struct {
	FundName string  `json:"fundName"`
	Units    float64 `json:"units"`
}

func (s *Server) sell(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeFailure(c, http.StatusUnauthorized, "Missing user")
		return
	}

	var req sellRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FundName == "" {
		writeFailure(c, http.StatusBadRequest, "Invalid request")
		return
	}

	result, err := s.engine.SubmitSell(c.Request.Context(), userID, req.FundName, decimal.NewFromFloat(req.Units))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInsufficientUnits) {
			writeFailure(c, http.StatusBadRequest, "Insufficient units")
			return
		}
		var verr *apperrors.ValidationError
		if apperrors.As(err, &verr) {
			writeFailure(c, http.StatusBadRequest, verr.Message)
			return
		}
		s.logger.Error().Err(err).Str("fund", req.FundName).Msg("Sell order failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to create sell order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orderId": result.OrderID,
		"message": "Sell order created successfully",
		"amount":  result.Amount.StringFixed(2),
	})
}

func (s *Server) orderStatus(c *gin.Context) {
	order, err := s.engine.OrderStatus(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrOrderNotFound) {
			writeFailure(c, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error().Err(err).Msg("Order lookup failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to get order status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   orderToItem(order),
	})
}

func (s *Server) portfolio(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeFailure(c, http.StatusUnauthorized, "Missing user")
		return
	}

	holdings, err := s.store.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Portfolio lookup failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to get portfolio")
		return
	}

	items := make([]gin.H, 0, len(holdings))
	for _, h := range holdings {
		items = append(items, gin.H{
			"fundName":      h.FundName,
			"totalUnits":    h.TotalUnits.StringFixed(4),
			"totalInvested": h.TotalInvested.StringFixed(2),
			"currentValue":  h.CurrentValue.StringFixed(2),
			"lastUpdated":   h.LastUpdated.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"portfolio": items,
	})
}

func (s *Server) listPlans(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeFailure(c, http.StatusUnauthorized, "Missing user")
		return
	}

	plans, err := s.store.ListPlans(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("SIP plan listing failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to list SIP plans")
		return
	}

	items := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		items = append(items, gin.H{
			"id":            plan.ID,
			"fundName":      plan.FundName,
			"amount":        plan.Amount.StringFixed(2),
			"dayOfMonth":    plan.DayOfMonth,
			"status":        string(plan.Status),
			"nextExecution": plan.NextExecution.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sips":    items,
	})
}

func (s *Server) pausePlan(c *gin.Context) {
	s.setPlanStatus(c, models.SIPPaused, "SIP plan paused")
}

func (s *Server) resumePlan(c *gin.Context) {
	s.setPlanStatus(c, models.SIPActive, "SIP plan resumed")
}

func (s *Server) cancelPlan(c *gin.Context) {
	s.setPlanStatus(c, models.SIPCancelled, "SIP plan cancelled")
}

// setPlanStatus drives the plan state machine: ACTIVE and PAUSED are
// interchangeable, CANCELLED is terminal.
func (s *Server) setPlanStatus(c *gin.Context, status models.SIPStatus, message string) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeFailure(c, http.StatusUnauthorized, "Missing user")
		return
	}

	planID := c.Param("id")
	plan, err := s.store.GetPlan(c.Request.Context(), planID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrPlanNotFound) {
			writeFailure(c, http.StatusNotFound, "SIP plan not found")
			return
		}
		s.logger.Error().Err(err).Msg("SIP plan lookup failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to update SIP plan")
		return
	}
	if plan.UserID != userID {
		writeFailure(c, http.StatusNotFound, "SIP plan not found")
		return
	}

	if err := s.store.UpdatePlanStatus(c.Request.Context(), planID, status); err != nil {
		if apperrors.Is(err, apperrors.ErrPlanCancelled) {
			writeFailure(c, http.StatusBadRequest, "SIP plan is cancelled")
			return
		}
		s.logger.Error().Err(err).Msg("SIP plan status update failed")
		writeFailure(c, http.StatusInternalServerError, "Failed to update SIP plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func orderToItem(order *models.Order) gin.H {
	item := gin.H{
		"orderId":   order.OrderID,
		"type":      string(order.Side),
		"fundName":  order.FundName,
		"amount":    order.Amount.StringFixed(2),
		"units":     order.Units.StringFixed(4),
		"nav":       order.NAV.String(),
		"status":    string(order.Status),
		"createdAt": order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.ProcessedAt != nil {
		item["processedAt"] = order.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func writeFailure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
