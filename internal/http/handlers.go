package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"ordernotify/internal/domain"
	"ordernotify/internal/metrics"
	"ordernotify/internal/repository"
	"ordernotify/internal/service"
)

// maxOrderBody limits POST /orders bodies
const maxOrderBody = 1 << 20

// PublicConfig значения, которые витрина может читать без авторизации
type PublicConfig struct {
	WhatsAppTo string `json:"whatsapp_to"`
}

type Server struct {
	engine     *gin.Engine
	dispatcher *service.Dispatcher
	metrics    *metrics.Registry
	public     PublicConfig
	logger     *zap.Logger
}

func NewServer(dispatcher *service.Dispatcher, m *metrics.Registry, public PublicConfig, logger *zap.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(logger))
	s := &Server{engine: r, dispatcher: dispatcher, metrics: m, public: public, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// storefront posts here
	s.engine.POST("/send_order", s.createOrder)

	v1 := s.engine.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET(":orderId", s.getOrder)

		v1.GET("/config", s.getConfig)
		v1.GET("/health", s.health)
	}
}

type createOrderResp struct {
	Status  string `json:"status" example:"success"`
	OrderID string `json:"orderId" example:"ORD-1A2B3C4D5E"`
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type deliveryErrorResp struct {
	Error   string `json:"error" example:"email_failed"`
	Kind    string `json:"kind" example:"DeliveryFailed"`
	Details string `json:"details"`
	OrderID string `json:"orderId"`
	Stored  bool   `json:"stored"`
}

// @Summary Submit order
// @Description Validates the order, stores it and notifies the merchant over the chosen channel.
// @Tags orders
// @Accept json
// @Produce json
// @Param input body domain.Order true "Order (orderId and timestamp are ignored)"
// @Success 200 {object} createOrderResp
// @Failure 400 {object} errorResp
// @Failure 500 {object} errorResp
// @Failure 502 {object} deliveryErrorResp
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxOrderBody)

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		details := "body must be a JSON object"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			details = fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)
		}
		s.logger.Debug("Order body rejected", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid_input", Details: details})
		return
	}

	res := s.dispatcher.Submit(c.Request.Context(), raw)
	status, body := ResultResponse(res)
	c.JSON(status, body)
}

// ResultResponse переводит итог обработки в HTTP-ответ
func ResultResponse(res service.Result) (int, any) {
	switch res.State {
	case service.StateCompleted:
		return http.StatusOK, createOrderResp{Status: "success", OrderID: res.OrderID}
	case service.StateRejectedInput:
		body := gin.H{"error": "invalid_input", "details": errorDetails(res.Err)}
		if res.Stored {
			body["orderId"] = res.OrderID
			body["stored"] = true
		}
		return http.StatusBadRequest, body
	case service.StateStorageError:
		return http.StatusInternalServerError, errorResp{Error: "storage_error", Details: errorDetails(res.Err)}
	case service.StatePartiallyFailed:
		return http.StatusBadGateway, deliveryErrorResp{
			Error:   string(res.Channel) + "_failed",
			Kind:    string(domain.KindOf(res.Err)),
			Details: errorDetails(res.Err),
			OrderID: res.OrderID,
			Stored:  true,
		}
	default:
		return http.StatusInternalServerError, errorResp{Error: "internal_error", Details: errorDetails(res.Err)}
	}
}

func errorDetails(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Field != "" {
			return de.Field + ": " + de.Detail
		}
		return de.Detail
	}
	return err.Error()
}

// @Summary Get stored order
// @Tags orders
// @Produce json
// @Param orderId path string true "Order ID"
// @Success 200 {object} domain.StoredOrder
// @Failure 400 {object} errorResp
// @Failure 404 {object} errorResp
// @Router /orders/{orderId} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.dispatcher.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		c.JSON(mapErrorToStatus(err), errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Public storefront config
// @Tags config
// @Produce json
// @Success 200 {object} PublicConfig
// @Router /config [get]
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.public)
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	channels := gin.H{}
	for ch, err := range s.dispatcher.ChannelStatus() {
		if err != nil {
			channels[string(ch)] = errorDetails(err)
			continue
		}
		channels[string(ch)] = "configured"
	}
	status := gin.H{"status": "healthy", "store": "healthy", "channels": channels}
	if err := s.dispatcher.Ping(c.Request.Context()); err != nil {
		status["status"] = "unhealthy"
		status["store"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
