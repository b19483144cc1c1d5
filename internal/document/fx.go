package document

import (
	"github.com/smallbiznis/atelier/internal/document/repository"
	"github.com/smallbiznis/atelier/internal/document/service"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
