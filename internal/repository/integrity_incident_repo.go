package repository

import (
	"context"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"gorm.io/gorm"
)

// IntegrityIncidentRepository is append-only: incidents are never updated.
type IntegrityIncidentRepository interface {
	CreateTx(tx *gorm.DB, inc *model.IntegrityIncident) error
	ListRecent(ctx context.Context, limit int) ([]model.IntegrityIncident, error)
}

type integrityIncidentRepo struct{ db *gorm.DB }

func NewIntegrityIncidentRepository(db *gorm.DB) IntegrityIncidentRepository {
	return &integrityIncidentRepo{db: db}
}

func (r *integrityIncidentRepo) CreateTx(tx *gorm.DB, inc *model.IntegrityIncident) error {
	return tx.Create(inc).Error
}

func (r *integrityIncidentRepo) ListRecent(ctx context.Context, limit int) ([]model.IntegrityIncident, error) {
	var incidents []model.IntegrityIncident
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&incidents).Error
	return incidents, err
}
