package db

import (
	"context"
	"time"

	"github.com/smallbiznis/tillpoint/internal/config"
	obslogger "github.com/smallbiznis/tillpoint/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module opens the gorm handle and manages its lifecycle.
var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(registerHooks),
)

// Open builds a *gorm.DB from the configured dialect with pool settings applied.
func Open(cfg config.Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(defaultInt(cfg.DBMaxIdleConn, 5))
	sqlDB.SetMaxOpenConns(defaultInt(cfg.DBMaxOpenConn, 25))
	sqlDB.SetConnMaxLifetime(time.Duration(defaultInt(cfg.DBConnMaxLifetime, 300)) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(defaultInt(cfg.DBConnMaxIdleTime, 60)) * time.Second)

	return conn, nil
}

func registerHooks(lc fx.Lifecycle, conn *gorm.DB, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			log.Info("closing database handle")
			return sqlDB.Close()
		},
	})
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
