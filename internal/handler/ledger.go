package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/apierror"
	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/middleware"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type LedgerHandler struct{ svc service.LedgerService }

func NewLedgerHandler(svc service.LedgerService) *LedgerHandler { return &LedgerHandler{svc: svc} }

// Lookup resolves a scanned or typed code. A fingerprint mismatch is healed
// and reported server-side; the caller still gets the account.
func (h *LedgerHandler) Lookup(c *gin.Context) {
	a, err := h.svc.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToAccountResponse(a))
}

func (h *LedgerHandler) Credit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CreditRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApplyCredit(c.Request.Context(), id, req.Amount, middleware.OperatorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Debit charges an account; on the register it books a cash sale instead.
func (h *LedgerHandler) Debit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DebitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApplyDebit(c.Request.Context(), id, req, middleware.OperatorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *LedgerHandler) CashSale(c *gin.Context) {
	var req dto.DebitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordCashSale(c.Request.Context(), req, middleware.OperatorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *LedgerHandler) Adjust(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustBalanceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AdjustBalance(c.Request.Context(), id, req.NewBalance, req.Reason, middleware.OperatorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LedgerHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.CancelTransaction(c.Request.Context(), id, middleware.OperatorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History lists the newest rows first; ?limit caps the page.
func (h *LedgerHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, apierror.New("invalid limit"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := h.svc.History(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.TransactionResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, service.ToTransactionResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) Reconcile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Reconcile(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LedgerHandler) Stats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.CreditStats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LedgerHandler) SystemStats(c *gin.Context) {
	resp, err := h.svc.SystemStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DailyReport takes ?date=YYYY-MM-DD in server local time; today when absent.
func (h *LedgerHandler) DailyReport(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid date"))
			return
		}
		day = d
	}
	resp, err := h.svc.DailyReport(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
