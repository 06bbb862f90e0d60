package repository

import (
	"context"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"gorm.io/gorm"
)

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	ListActive(ctx context.Context) ([]model.Product, error)

	// UpdateStockTx increments (or decrements, with a negative delta) stock.
	UpdateStockTx(tx *gorm.DB, id uint, delta int) error

	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *productRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) UpdateStockTx(tx *gorm.DB, id uint, delta int) error {
	return tx.Model(&model.Product{}).Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", delta)).Error
}

func (r *productRepo) DB() *gorm.DB { return r.db }
