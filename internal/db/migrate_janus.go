package db

import (
	"github.com/rfzwl/janus/internal/db/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrateJanusSchema applies the symbol registry and historical-bar
// tables. The core never creates schema in production — this is a
// dev/local convenience, gated by Database.AutoMigrate, the same way
// the upstream project gates MigrateSchema behind an explicit call
// from main rather than running it implicitly on every connect.
func MigrateJanusSchema(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("running janus schema migration")

	if err := db.AutoMigrate(
		&models.SymbolRegistryRecord{},
		&models.HistoricalBar{},
	); err != nil {
		logger.Error("janus schema migration failed", zap.Error(err))
		return err
	}

	logger.Info("janus schema migration completed")
	return nil
}
