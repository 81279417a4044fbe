package database

import (
	"errors"
	"time"

	"github.com/triana-labs/tourwalk/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeAccountEmails = "2026-08-12_normalize_account_emails"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeAccountEmails, apply: normalizeAccountEmails},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Accounts created before sign-in normalization could carry mixed-case
// emails, which breaks the unique lookup.
func normalizeAccountEmails(db *gorm.DB) error {
	return db.Model(&auth.Account{}).
		Where("email <> lower(email)").
		Update("email", gorm.Expr("lower(email)")).Error
}
