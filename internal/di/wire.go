//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"messenger/config"
	"messenger/internal/cache"
	"messenger/internal/chat"
	"messenger/internal/database"
	"messenger/internal/gateway"
	"messenger/internal/notification"
)

var AppSet = wire.NewSet(
	ProvideTokens,
	ProvidePrometheusRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	ProvideDirectory,
	ProvideChatRepository,
	ProvideCallRepository,
	ProvideNotificationRepository,
	gateway.NewRegistry,
	gateway.NewMetrics,
	gateway.NewHub,
	wire.Bind(new(chat.Emitter), new(*gateway.Hub)),
	wire.Bind(new(notification.Emitter), new(*gateway.Hub)),
	chat.NewConversationService,
	chat.NewMessageService,
	chat.NewQueryService,
	ProvideCallService,
	notification.NewService,
	ProvideGateway,
	ProvideServer,
	wire.Struct(new(Application), "*"),
)

func InitializeApplication(cfg *config.Config, db *database.Database, redis *cache.RedisCache, log *zap.Logger) *Application {
	wire.Build(AppSet)
	return &Application{}
}
