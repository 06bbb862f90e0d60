package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	catalogCacheKey = "catalog:active"
	catalogCacheTTL = 5 * time.Minute
)

// CatalogReader is satisfied by repository.ProductRepository.
type CatalogReader interface {
	ListActive(ctx context.Context) ([]model.Product, error)
}

type ProductResponse struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// ProductsHandler serves the read-only catalog the till renders as buttons.
// Charges always re-read prices from the database; the cache only backs
// this listing.
type ProductsHandler struct {
	repo CatalogReader
	rdb  *redis.Client
}

func NewProductsHandler(repo CatalogReader, rdb *redis.Client) *ProductsHandler {
	return &ProductsHandler{repo: repo, rdb: rdb}
}

func (h *ProductsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, catalogCacheKey).Bytes(); err == nil {
			var resp []ProductResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	products, err := h.repo.ListActive(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
	}

	if h.rdb != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.rdb.Set(ctx, catalogCacheKey, data, catalogCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("catalog cache write failed")
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
