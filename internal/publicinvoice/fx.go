package publicinvoice

import (
	"github.com/smallbiznis/atelier/internal/publicinvoice/repository"
	"github.com/smallbiznis/atelier/internal/publicinvoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"publicinvoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
