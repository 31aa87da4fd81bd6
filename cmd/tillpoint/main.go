package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/cache"
	"github.com/smallbiznis/tillpoint/internal/catalog"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	"github.com/smallbiznis/tillpoint/internal/migration"
	"github.com/smallbiznis/tillpoint/internal/observability"
	"github.com/smallbiznis/tillpoint/internal/order"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	"github.com/smallbiznis/tillpoint/internal/sequence"
	"github.com/smallbiznis/tillpoint/internal/tax"
	"github.com/smallbiznis/tillpoint/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,

		// Functional Domains
		catalog.Module,
		tax.Module,
		sequence.Module,
		order.Module,

		// Transport is hosted out of process; demanding the order
		// service here forces the full graph to construct at startup.
		fx.Invoke(func(log *zap.Logger, _ orderdomain.Service) {
			log.Info("order processor ready")
		}),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
