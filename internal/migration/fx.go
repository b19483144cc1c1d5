package migration

import (
	"strings"

	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if strings.EqualFold(cfg.DBType, "sqlite") {
			log.Info("applying embedded schema on sqlite")
			return ApplySQLite(sqlDB)
		}
		return RunMigrations(sqlDB)
	}),
)
