package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethan0sc4r/gestione-vinicola/internal/apierror"
	"github.com/ethan0sc4r/gestione-vinicola/internal/model"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/gin-gonic/gin"
)

// IncidentLister is satisfied by repository.IntegrityIncidentRepository.
type IncidentLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.IntegrityIncident, error)
}

type IntegrityHandler struct {
	svc       service.LedgerService
	incidents IncidentLister
}

func NewIntegrityHandler(svc service.LedgerService, incidents IncidentLister) *IntegrityHandler {
	return &IntegrityHandler{svc: svc, incidents: incidents}
}

// Verify runs a full pass and returns the accounts that were healed.
func (h *IntegrityHandler) Verify(c *gin.Context) {
	flagged, err := h.svc.VerifyAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged, "count": len(flagged)})
}

func (h *IntegrityHandler) Reset(c *gin.Context) {
	n, err := h.svc.ResetFingerprints(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sealed": n})
}

func (h *IntegrityHandler) Incidents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, apierror.New("invalid limit"))
			return
		}
		limit = n
	}
	list, err := h.incidents.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []model.IntegrityIncident{}
	}
	c.JSON(http.StatusOK, list)
}
