package bootstrap

import (
	"dbgateway/config"
	"dbgateway/models"
	"dbgateway/pkg/logger"
)

// Migrate creates or updates the definition store schema.
func Migrate() error {
	if err := config.DB.AutoMigrate(&models.DatabaseDef{}); err != nil {
		logger.Errorf("Definition store migration failed: %v", err)
		return err
	}
	logger.Infof("Definition store schema is up to date")
	return nil
}
