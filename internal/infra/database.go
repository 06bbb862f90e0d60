package infra

import (
	"fmt"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the GORM connection, migrates the ledger tables and
// applies the idempotent SQL patches GORM tags cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// GormConfig translates driver errors into gorm sentinels, so a unique
// violation surfaces as gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// RunMigrations creates or updates every table, then applies schema patches.
// Integration tests call it directly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.Product{},
		&model.GlobalSetting{},
		&model.IntegrityIncident{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements. Each uses IF NOT EXISTS
// semantics so re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// account codes are unique regardless of case
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_code_lower ON accounts (LOWER(code))`,
		// one mirror leg per top-up
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_mirror_source
		    ON transactions (source_transaction_id)
		    WHERE tag = 'top_up_mirror'`,
		// history queries per account, newest first
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_id_desc
		    ON transactions (account_id, id DESC)`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
