package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"saladas-service/internal/models"
	"saladas-service/internal/service"
	"saladas-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthAPI signs users in and resolves bearer tokens
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*service.LoginResponse, error)
	Logout(ctx context.Context, sess *service.Session) error
	Authenticate(ctx context.Context, token string) (*service.Session, error)
}

// CatalogAPI lists what stores can order
type CatalogAPI interface {
	ListStores(ctx context.Context) ([]models.Store, error)
	ListSaladTypes(ctx context.Context) ([]models.SaladType, error)
	ListSauces(ctx context.Context) ([]models.Sauce, error)
}

// OrderAPI is the store order flow
type OrderAPI interface {
	SubmitOrder(ctx context.Context, sess *service.Session, req *service.SubmitOrderRequest) (*models.ShipmentDetail, error)
	RecentOrders(ctx context.Context, sess *service.Session, storeID int64) ([]models.Shipment, error)
}

// FulfillmentAPI is the production flow
type FulfillmentAPI interface {
	DailyBoard(ctx context.Context, rawDate string) (*service.DailyBoard, error)
	SendShipment(ctx context.Context, sess *service.Session, shipmentID int64, req *service.SendShipmentRequest) (*service.SendShipmentResult, error)
	SendAllShipments(ctx context.Context, sess *service.Session, req *service.SendAllRequest) (*service.SendAllResult, error)
}

// LossAPI is the loss and correction flow
type LossAPI interface {
	Policy() models.LossPolicy
	RecordLosses(ctx context.Context, sess *service.Session, req *service.RecordLossRequest) (*service.LossSubmission, error)
	RecordCorrection(ctx context.Context, sess *service.Session, req *service.CorrectionRequest) (*service.CorrectionResult, error)
}

// ReportAPI serves admin reports
type ReportAPI interface {
	Report(ctx context.Context, kind string, f service.ReportFilter) (interface{}, error)
	Export(ctx context.Context, kind, format string, f service.ReportFilter) (*service.ExportFile, error)
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the dependencies of the HTTP handlers
type Services struct {
	Auth        AuthAPI
	Catalog     CatalogAPI
	Orders      OrderAPI
	Fulfillment FulfillmentAPI
	Losses      LossAPI
	Reports     ReportAPI
	Ready       map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	svc            Services
	requestTimeout time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, requestTimeout time.Duration) *Handler {
	return &Handler{svc: svc, requestTimeout: requestTimeout}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(timeoutMiddleware(h.requestTimeout))
	{
		v1.POST("/auth/login", h.login)
	}

	anyProfile := v1.Group("", h.RequireProfile())
	{
		anyProfile.POST("/auth/logout", h.logout)
		anyProfile.GET("/auth/me", h.me)
		anyProfile.GET("/catalog/stores", h.listStores)
		anyProfile.GET("/catalog/salad-types", h.listSaladTypes)
		anyProfile.GET("/catalog/sauces", h.listSauces)
	}

	stores := v1.Group("", h.RequireProfile(models.ProfileStore, models.ProfileAdmin))
	{
		stores.POST("/orders", h.submitOrder)
		stores.GET("/orders/recent", h.recentOrders)
		stores.POST("/losses", h.recordLosses)
	}

	production := v1.Group("", h.RequireProfile(models.ProfileProduction, models.ProfileAdmin))
	{
		production.GET("/fulfillment", h.dailyBoard)
		production.POST("/fulfillment/send-all", h.sendAll)
		production.POST("/shipments/:id/send", h.sendShipment)
	}

	admin := v1.Group("", h.RequireProfile(models.ProfileAdmin))
	{
		admin.GET("/reports/:type", h.getReport)
		admin.GET("/reports/:type/export", h.exportReport)
		admin.POST("/corrections", h.recordCorrection)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the database and Redis
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.svc.Ready {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.svc.Auth.Logout(c.Request.Context(), session(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	sess := session(c)
	c.JSON(http.StatusOK, gin.H{
		"user":       sess.User,
		"profile":    sess.Profile(),
		"expires_at": sess.ExpiresAt,
	})
}

func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.svc.Catalog.ListStores(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func (h *Handler) listSaladTypes(c *gin.Context) {
	salads, err := h.svc.Catalog.ListSaladTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"salad_types": salads})
}

func (h *Handler) listSauces(c *gin.Context) {
	sauces, err := h.svc.Catalog.ListSauces(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sauces": sauces})
}

// submitOrder handles order creation
func (h *Handler) submitOrder(c *gin.Context) {
	var req service.SubmitOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	detail, err := h.svc.Orders.SubmitOrder(c.Request.Context(), session(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) recentOrders(c *gin.Context) {
	storeID, ok := queryID(c, "store_id")
	if !ok {
		return
	}

	orders, err := h.svc.Orders.RecentOrders(c.Request.Context(), session(c), storeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) recordLosses(c *gin.Context) {
	var req service.RecordLossRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.svc.Losses.RecordLosses(c.Request.Context(), session(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) dailyBoard(c *gin.Context) {
	board, err := h.svc.Fulfillment.DailyBoard(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *Handler) sendShipment(c *gin.Context) {
	shipmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || shipmentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid shipment ID",
		})
		return
	}

	var req service.SendShipmentRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Fulfillment.SendShipment(c.Request.Context(), session(c), shipmentID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) sendAll(c *gin.Context) {
	var req service.SendAllRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Fulfillment.SendAllShipments(c.Request.Context(), session(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) getReport(c *gin.Context) {
	var filter service.ReportFilter
	if !bindQuery(c, &filter) {
		return
	}

	report, err := h.svc.Reports.Report(c.Request.Context(), c.Param("type"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":   c.Param("type"),
		"report": report,
	})
}

func (h *Handler) exportReport(c *gin.Context) {
	var filter service.ReportFilter
	if !bindQuery(c, &filter) {
		return
	}

	file, err := h.svc.Reports.Export(c.Request.Context(), c.Param("type"), c.DefaultQuery("format", service.FormatXLSX), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+file.Name)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *Handler) recordCorrection(c *gin.Context) {
	var req service.CorrectionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Losses.RecordCorrection(c.Request.Context(), session(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
			"field": name,
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
