package migration

import (
	catalogdomain "github.com/smallbiznis/tillpoint/internal/catalog/domain"
	"github.com/smallbiznis/tillpoint/internal/config"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/seed"
	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql development modes take the gorm schema directly.
			if err := conn.AutoMigrate(
				&catalogdomain.Product{},
				&taxdomain.TaxRate{},
				&orderdomain.Order{},
				&orderdomain.OrderLine{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureReferenceData(conn)
	}),
)
