package api

import (
	"fmt"
	"time"

	auditHandlers "github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/audit"
	"github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/requirements"
	"github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/submissions"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/audit"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/gating"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra/queue"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/middleware"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/notification"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/requirement"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/submission"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{
		&requirement.Requirement{},
		&submission.Submission{},
		&audit.AuditLog{},
		&notification.OrganizationMember{},
	}
}

// AppContainer 应用依赖容器
type AppContainer struct {
	Config *config.Config
	DB     *gorm.DB

	JWTService  *auth.JWTService
	GatingCache *gating.Cache
	Enforcer    *gating.Enforcer
	RateLimiter *middleware.RateLimiter

	Requirements *requirement.Service
	Submissions  *submission.Service

	AuditRepo  *audit.Repository
	Audit      *audit.Dispatcher
	Members    *notification.MemberDirectory
	Deliverer  *notification.Deliverer
	Dispatcher notification.Dispatcher

	closers []func()
}

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Requirements *requirements.Handler
	Submissions  *submissions.Handler
	Audit        *auditHandlers.Handler
}

// BuildContainer 按配置组装服务
func BuildContainer(db *gorm.DB, cfg *config.Config) (*AppContainer, error) {
	c := &AppContainer{Config: cfg, DB: db}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret 未配置")
	}
	c.JWTService = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenExpiry)

	files, err := storage.NewLocalStore(cfg.Storage.BasePath)
	if err != nil {
		return nil, err
	}
	policy := storage.NewPolicy(cfg.Upload.MaxFileSize)

	// 审计
	c.AuditRepo = audit.NewRepository(db)
	c.Audit = audit.NewDispatcher(c.AuditRepo, audit.DispatcherConfig{
		QueueSize: cfg.Audit.QueueSize,
		Workers:   cfg.Audit.Workers,
	})
	c.closers = append(c.closers, c.Audit.Close)

	// 通知
	c.Members = notification.NewMemberDirectory(db)
	c.Deliverer = notification.NewDeliverer(c.Members, newNotifier(cfg.Notification))
	c.Dispatcher = c.newDispatcher(cfg)

	// 需求目录与门控
	requirementRepo := requirement.NewRepository(db)
	submissionRepo := submission.NewRepository(db)

	c.GatingCache = gating.NewCache(requirementRepo, cfg.Gating.CacheTTL)
	c.Enforcer = gating.NewEnforcer(c.GatingCache, cfg.Gating.Enabled)

	c.Requirements = requirement.NewService(requirementRepo, files, policy, c.GatingCache, c.Audit,
		requirement.WithOrphaner(submissionRepo))
	c.Submissions = submission.NewService(submissionRepo, c.Requirements, files, policy, c.Audit, c.Dispatcher)

	c.RateLimiter = middleware.NewRateLimiter(c.newRateLimitStore(cfg), cfg.RateLimit, nil)

	return c, nil
}

// BuildHandlers 创建处理器
func BuildHandlers(c *AppContainer) *Handlers {
	return &Handlers{
		Requirements: requirements.NewHandler(c.Requirements, c.GatingCache, c.Enforcer.GlobalEnabled()),
		Submissions:  submissions.NewHandler(c.Submissions),
		Audit:        auditHandlers.NewHandler(c.AuditRepo),
	}
}

// Close 按创建的逆序释放资源
func (c *AppContainer) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func newNotifier(cfg config.NotificationConfig) notification.Notifier {
	if cfg.Channel == "email" {
		return notification.NewEmailNotifier(notification.EmailConfig{
			SMTPHost: cfg.SMTP.Host,
			SMTPPort: cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
	}
	return notification.NewLogNotifier()
}

func (c *AppContainer) newDispatcher(cfg *config.Config) notification.Dispatcher {
	if cfg.Notification.Queue == "redis" {
		client := queue.NewClient(cfg.Redis)
		c.closers = append(c.closers, func() { _ = client.Close() })
		logger.Info("通知通过 Redis 队列投递", zap.String("redis", cfg.Redis.Addr()))
		return notification.NewQueueDispatcher(client)
	}

	d := notification.NewAsyncDispatcher(c.Deliverer, notification.AsyncDispatcherConfig{
		QueueSize:   cfg.Notification.QueueSize,
		Workers:     cfg.Notification.Workers,
		SendTimeout: 30 * time.Second,
	})
	c.closers = append(c.closers, d.Close)
	return d
}

func (c *AppContainer) newRateLimitStore(cfg *config.Config) middleware.Store {
	if cfg.RateLimit.Store == "redis" {
		client, err := infra.InitRedis(&cfg.Redis)
		if err == nil {
			c.closers = append(c.closers, func() { _ = infra.CloseRedis() })
			return middleware.NewRedisStore(client, "accreditation:ratelimit:")
		}
		logger.Warn("Redis 不可用，限流退回内存存储", zap.Error(err))
	}

	store := middleware.NewMemoryStore(cfg.RateLimit.SweepInterval, nil)
	c.closers = append(c.closers, store.Stop)
	return store
}
