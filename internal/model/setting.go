package model

import "time"

// SettingCreditLimit is the key of the system-wide negative-credit override.
const SettingCreditLimit = "credit_limit"

type GlobalSetting struct {
	Key       string `gorm:"type:varchar(64);primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (GlobalSetting) TableName() string { return "global_settings" }
