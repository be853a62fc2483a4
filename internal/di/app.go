package di

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"messenger/config"
	"messenger/internal/api"
	"messenger/internal/cache"
	"messenger/internal/call"
	"messenger/internal/chat"
	"messenger/internal/database"
	"messenger/internal/gateway"
	"messenger/internal/notification"
	"messenger/internal/user"
	"messenger/pkg/jwt"
)

const tokenExpiry = 24 * time.Hour

// Application is the fully wired server plus the pieces main needs to drive
// startup and shutdown.
type Application struct {
	Server        *api.Server
	Notifications *notification.Service
}

// Models lists every persisted type for AutoMigrate.
func Models() []any {
	return []any{
		&user.User{},
		&chat.Conversation{},
		&chat.Message{},
		&chat.MessageStatus{},
		&call.Call{},
		&call.CallParticipant{},
		&notification.Notification{},
		&notification.UserNotification{},
	}
}

func ProvideTokens(cfg *config.Config) *jwt.JWT {
	return jwt.NewJWT(cfg.JWTSecret, tokenExpiry)
}

func ProvidePrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func ProvideDirectory(db *database.Database, redis *cache.RedisCache, cfg *config.Config, log *zap.Logger) user.Directory {
	return user.NewCachedDirectory(user.NewGormDirectory(db.DB), redis, cfg.ProfileCacheTTL, log)
}

func ProvideChatRepository(db *database.Database) chat.Repository {
	return chat.NewGormRepository(db.DB)
}

func ProvideCallRepository(db *database.Database) call.Repository {
	return call.NewGormRepository(db.DB)
}

func ProvideNotificationRepository(db *database.Database) notification.Repository {
	return notification.NewGormRepository(db.DB)
}

func ProvideCallService(
	repo call.Repository,
	conversations chat.Repository,
	recorder *chat.MessageService,
	hub *gateway.Hub,
	cfg *config.Config,
	log *zap.Logger,
) *call.Service {
	return call.NewService(repo, conversations, recorder, hub, cfg.CallRingTimeout, log)
}

func ProvideGateway(
	hub *gateway.Hub,
	tokens *jwt.JWT,
	directory user.Directory,
	metrics *gateway.Metrics,
	conversations *chat.ConversationService,
	messages *chat.MessageService,
	queries *chat.QueryService,
	calls *call.Service,
	notifications *notification.Service,
	cfg *config.Config,
	log *zap.Logger,
) *gateway.Gateway {
	return gateway.NewGateway(hub, tokens, directory, metrics,
		conversations, messages, queries, calls, notifications,
		cfg.HandshakeTimeout, log)
}

func ProvideServer(
	gw *gateway.Gateway,
	db *database.Database,
	redis *cache.RedisCache,
	reg *prometheus.Registry,
	cfg *config.Config,
	log *zap.Logger,
) *api.Server {
	return api.NewServer(gw, db, redis, reg, cfg.AdmitRatePerSec, log)
}
