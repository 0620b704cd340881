package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"stock-watch/internal/model"
	"stock-watch/internal/scraper"
	"stock-watch/internal/store"

	"github.com/gin-gonic/gin"
)

// StoreInterface defines the store interface needed by handlers
type StoreInterface interface {
	Load(ctx context.Context, key string) model.MonitorState
	ListNotifications(ctx context.Context, productKey string, limit int) ([]*model.NotificationRecord, error)
	GetNotification(ctx context.Context, id string) (*model.NotificationRecord, error)
}

// Notifier sends a free-form message on every channel
type Notifier interface {
	Send(ctx context.Context, subject, body string) []model.Delivery
}

// SchedulerInterface defines the scheduler interface for handlers
type SchedulerInterface interface {
	ScrapeNow(ctx context.Context) []model.CycleStatus
	GetScrapeStatus() *scraper.ScrapeStatus
}

// Handlers contains all API handlers
type Handlers struct {
	store     StoreInterface
	notifier  Notifier
	scheduler SchedulerInterface
}

// NewHandlers creates a new handlers instance
func NewHandlers(store StoreInterface, notifier Notifier, scheduler SchedulerInterface) *Handlers {
	return &Handlers{
		store:     store,
		notifier:  notifier,
		scheduler: scheduler,
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// productStatus is one product in the status response
type productStatus struct {
	scraper.ProductCycleStatus
	State model.MonitorState `json:"state"`
}

// GetStatus returns loop status plus the stored state of each product
func (h *Handlers) GetStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "scheduler not available",
		})
		return
	}

	status := h.scheduler.GetScrapeStatus()
	products := make([]productStatus, 0, len(status.Products))
	for _, p := range status.Products {
		products = append(products, productStatus{
			ProductCycleStatus: p,
			State:              h.store.Load(c.Request.Context(), p.Product.Key),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"is_running": status.IsRunning,
		"started_at": status.StartedAt,
		"products":   products,
	})
}

// GetNotifications lists notification history, newest first
func (h *Handlers) GetNotifications(c *gin.Context) {
	productKey := c.Query("product")

	// Parse limit (max 200)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	history, err := h.store.ListNotifications(c.Request.Context(), productKey, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	if history == nil {
		history = []*model.NotificationRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  history,
		"total": len(history),
		"limit": limit,
	})
}

// GetNotification returns a single history record
func (h *Handlers) GetNotification(c *gin.Context) {
	rec, err := h.store.GetNotification(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "notification not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// TriggerCheck runs one cycle for every product and returns the results
func (h *Handlers) TriggerCheck(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "scheduler not available",
		})
		return
	}

	results := h.scheduler.ScrapeNow(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"data": results,
	})
}

type testNotificationRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SendTestNotification sends a message on every channel
func (h *Handlers) SendTestNotification(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "notifier not available",
		})
		return
	}

	var req testNotificationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
	}
	if req.Subject == "" {
		req.Subject = "[stock-watch] Test notification"
	}
	if req.Message == "" {
		req.Message = "This is a test message from stock-watch. If you can read it, the channel works."
	}

	deliveries := h.notifier.Send(c.Request.Context(), req.Subject, req.Message)
	c.JSON(http.StatusOK, gin.H{
		"data": deliveries,
	})
}
