package handler

import (
	"net/http"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/gin-gonic/gin"
)

// AccountsHandler covers account creation and limit settings. Balances are
// never written from here.
type AccountsHandler struct{ svc service.AccountAdminService }

func NewAccountsHandler(svc service.AccountAdminService) *AccountsHandler {
	return &AccountsHandler{svc: svc}
}

func (h *AccountsHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	a, err := h.svc.CreateAccount(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ToAccountResponse(a))
}

func (h *AccountsHandler) SetLimit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.SetCreditLimitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	a, err := h.svc.SetCreditLimit(c.Request.Context(), id, req.CreditLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToAccountResponse(a))
}

func (h *AccountsHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAccount(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountsHandler) GetGlobalLimit(c *gin.Context) {
	v, err := h.svc.GlobalCreditLimit(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GlobalCreditLimitResponse{Value: v})
}

// SetGlobalLimit stores the override; {"value": null} removes it.
func (h *AccountsHandler) SetGlobalLimit(c *gin.Context) {
	var req dto.GlobalCreditLimitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := h.svc.SetGlobalCreditLimit(ctx, req.Value); err != nil {
		writeError(c, err)
		return
	}
	v, err := h.svc.GlobalCreditLimit(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GlobalCreditLimitResponse{Value: v})
}
