package repository

import (
	"context"
	"errors"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository interface {
	// Get returns the raw value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// SetDefault stores value only when the key is absent.
	SetDefault(ctx context.Context, key, value string) error
}

type settingRepo struct{ db *gorm.DB }

func NewSettingRepository(db *gorm.DB) SettingRepository { return &settingRepo{db: db} }

func (r *settingRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var s model.GlobalSetting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *settingRepo) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model.GlobalSetting{Key: key, Value: value}).Error
}

func (r *settingRepo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&model.GlobalSetting{}).Error
}

func (r *settingRepo) SetDefault(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.GlobalSetting{Key: key, Value: value}).Error
}
