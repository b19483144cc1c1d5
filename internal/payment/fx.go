package payment

import (
	"github.com/smallbiznis/atelier/internal/payment/checkout"
	"github.com/smallbiznis/atelier/internal/payment/repository"
	"github.com/smallbiznis/atelier/internal/payment/stripe"
	"github.com/smallbiznis/atelier/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(stripe.NewClient, fx.As(new(stripe.SessionCreator))),
	),
	fx.Provide(checkout.NewService),
	fx.Provide(webhook.NewService),
)
