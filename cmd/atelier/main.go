package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/document"
	"github.com/smallbiznis/atelier/internal/export"
	"github.com/smallbiznis/atelier/internal/migration"
	"github.com/smallbiznis/atelier/internal/notification"
	"github.com/smallbiznis/atelier/internal/observability"
	"github.com/smallbiznis/atelier/internal/organization"
	"github.com/smallbiznis/atelier/internal/payment"
	"github.com/smallbiznis/atelier/internal/publicinvoice"
	"github.com/smallbiznis/atelier/internal/quota"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"github.com/smallbiznis/atelier/internal/secret"
	"github.com/smallbiznis/atelier/internal/sequence"
	"github.com/smallbiznis/atelier/internal/server"
	"github.com/smallbiznis/atelier/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		secret.Module,

		organization.Module,
		notification.Module,
		quota.Module,
		sequence.Module,
		document.Module,
		payment.Module,
		publicinvoice.Module,
		export.Module,
		ratelimit.Module,

		server.Module,
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
