package handler

import (
	"net/http"
	"strconv"

	"github.com/ethan0sc4r/gestione-vinicola/internal/apierror"
	"github.com/ethan0sc4r/gestione-vinicola/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// AlertsHandler exposes the Redis side of integrity reporting: the capped
// audit feed and the dead-lettered alert e-mails.
type AlertsHandler struct {
	rdb   *redis.Client
	audit *worker.AuditChannel
}

func NewAlertsHandler(rdb *redis.Client, audit *worker.AuditChannel) *AlertsHandler {
	return &AlertsHandler{rdb: rdb, audit: audit}
}

func (h *AlertsHandler) Feed(c *gin.Context) {
	n := int64(50)
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 || v > 1000 {
			c.JSON(http.StatusBadRequest, apierror.New("invalid limit"))
			return
		}
		n = v
	}
	list, err := h.audit.Recent(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AlertsHandler) DeadLetters(c *gin.Context) {
	n, err := worker.DLQLength(c.Request.Context(), h.rdb, worker.QueueAlerts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": worker.QueueAlerts, "parked": n})
}

// Replay pushes parked alert e-mails back onto the queue.
func (h *AlertsHandler) Replay(c *gin.Context) {
	moved, err := worker.ReplayDLQ(c.Request.Context(), h.rdb, worker.QueueAlerts, 100)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": moved})
}
