package handler

import (
	"net/http"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/middleware"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/gin-gonic/gin"
)

type RegisterHandler struct{ svc service.CashRegisterService }

func NewRegisterHandler(svc service.CashRegisterService) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

func (h *RegisterHandler) Get(c *gin.Context) {
	a, err := h.svc.Register(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToAccountResponse(a))
}

// Withdraw takes cash out of the drawer: {"amount": "20.00"} or {"all": true}.
func (h *RegisterHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Withdraw(c.Request.Context(), req.Amount, req.All, middleware.OperatorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
