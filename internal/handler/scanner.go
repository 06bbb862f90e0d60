package handler

import (
	"errors"
	"net/http"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/scanner"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/gin-gonic/gin"
)

// ScanSource is satisfied by *scanner.Reader.
type ScanSource interface {
	LatestScan() (scanner.Scan, bool)
	Status() scanner.Status
}

// ScannerHandler is polled by the till UI. src is nil when the serial reader
// is disabled or its port could not be opened.
type ScannerHandler struct {
	src    ScanSource
	ledger service.LedgerService
	port   string
}

func NewScannerHandler(src ScanSource, ledger service.LedgerService, port string) *ScannerHandler {
	return &ScannerHandler{src: src, ledger: ledger, port: port}
}

// Latest returns the newest scan with its resolved account, or 204 when
// nothing has been scanned yet.
func (h *ScannerHandler) Latest(c *gin.Context) {
	if h.src == nil {
		c.Status(http.StatusNoContent)
		return
	}
	scan, ok := h.src.LatestScan()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	resp := dto.LatestScanResponse{Code: scan.Code, ScannedAt: scan.ScannedAt}
	a, err := h.ledger.Lookup(c.Request.Context(), scan.Code)
	switch {
	case err == nil:
		ar := service.ToAccountResponse(a)
		resp.Found = true
		resp.Account = &ar
	case errors.Is(err, service.ErrNotFound):
	default:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ScannerHandler) Status(c *gin.Context) {
	if h.src == nil {
		c.JSON(http.StatusOK, dto.ScannerStatusResponse{
			Enabled: false,
			State:   scanner.Disconnected.String(),
			Port:    h.port,
			Recent:  []string{},
		})
		return
	}
	st := h.src.Status()
	resp := dto.ScannerStatusResponse{
		Enabled:   true,
		State:     st.State.String(),
		Port:      st.Port,
		LastError: st.LastError,
		Recent:    make([]string, 0, len(st.Recent)),
	}
	for _, s := range st.Recent {
		resp.Recent = append(resp.Recent, s.Code)
	}
	if len(st.Recent) > 0 {
		at := st.Recent[0].ScannedAt
		resp.LastScan = &at
	}
	c.JSON(http.StatusOK, resp)
}
