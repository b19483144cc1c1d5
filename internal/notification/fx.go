package notification

import (
	"github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/notification/repository"
	"github.com/smallbiznis/atelier/internal/notification/service"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(func(orgs orgdomain.Service) domain.MemberLister { return orgs }),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.Notifier { return svc }),
)
