package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	goredis "github.com/redis/go-redis/v9"

	"chat_warden/internal/config"
	"chat_warden/internal/domain/model"
	"chat_warden/internal/domain/rules"
	"chat_warden/internal/infra/telegram"
	"chat_warden/internal/repo/postgres"
	redisrepo "chat_warden/internal/repo/redis"
	"chat_warden/internal/services/audit"
	"chat_warden/internal/services/executor"
	"chat_warden/internal/services/gate"
	"chat_warden/internal/services/settings"
	"chat_warden/internal/services/slowmode"
	"chat_warden/internal/services/sweeper"
	"chat_warden/internal/transport/intake"
	"chat_warden/internal/ui"
)

// botClient is the slice of the platform client the router and command
// handlers use, separated so they can run against doubles.
type botClient interface {
	Start(ctx context.Context) error
	Self() tgbotapi.User
	Send(msg tgbotapi.Chattable) error
	SendText(chatID int64, text string) error
	ReplyText(chatID int64, replyTo int, text string) error
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	ChatAdministrators(ctx context.Context, chatID int64) ([]tgbotapi.ChatMember, error)
	ChatMember(ctx context.Context, chatID, userID int64) (tgbotapi.ChatMember, error)
	ResolveUserByHandle(ctx context.Context, handle string) (int64, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(callbackID, text string, alert bool) error
	ClearInlineKeyboard(chatID int64, messageID int) error
}

type userStateStore interface {
	Touch(ctx context.Context, chatID, userID int64, username string) error
	Get(ctx context.Context, chatID, userID int64) (model.UserState, error)
	FindByUsername(ctx context.Context, chatID int64, username string) (int64, error)
}

type App struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *goredis.Client
	tg     botClient

	settingsService *settings.Service
	usersRepo       userStateStore
	gateService     *gate.Service
	execService     *executor.Service
	auditService    *audit.Service
	evaluator       *rules.Evaluator
	limiter         *slowmode.Limiter
	sweepService    *sweeper.Service
	intakeServer    *intake.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres unavailable, continuing without database", "error", err)
		db = nil
	}
	if db != nil {
		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	redisClient, err := redisrepo.Open(context.Background(), cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, slowmode disabled", "error", err)
		redisClient = nil
	}

	chatsRepo := postgres.NewChatsRepo(db)
	usersRepo := postgres.NewUserStateRepo(db)
	subsRepo := postgres.NewSubscriptionRepo(db)
	logsRepo := postgres.NewModLogsRepo(db)

	var windowStore slowmode.WindowStore
	if redisClient != nil {
		windowStore = redisrepo.NewWindowRepo(redisClient)
	}

	app := &App{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		redis:           redisClient,
		settingsService: settings.NewService(chatsRepo),
		usersRepo:       usersRepo,
		auditService:    audit.NewService(logsRepo),
		evaluator:       rules.NewEvaluator(append(append([]string{}, rules.DefaultProfanity...), cfg.ExtraProfanity...)),
		limiter:         slowmode.NewLimiter(windowStore),
	}

	client, err := telegram.NewClient(cfg.BotToken, cfg.PollTimeoutSeconds, logger, app.routeUpdate)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("create telegram client: %w", err)
	}
	app.tg = client

	app.execService = executor.NewService(client, usersRepo, app.auditService, logger)
	app.gateService = gate.NewService(subsRepo, client, &joinPrompter{tg: client}, logger)
	app.sweepService = sweeper.NewService(usersRepo, subsRepo, chatsRepo, app.execService, app.gateService, logger)

	if cfg.IntakeAddr != "" && cfg.IntakeChatID != 0 {
		app.intakeServer = intake.NewServer(cfg.IntakeAddr, cfg.IntakeChatID, &chatNotifier{tg: client}, logger)
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	go a.sweepService.Run(ctx)

	if a.intakeServer != nil {
		go func() {
			if err := a.intakeServer.Run(ctx); err != nil {
				a.logger.Error("intake server stopped", "error", err)
			}
		}()
	}

	return a.tg.Start(ctx)
}

func (a *App) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close postgres", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("close redis", "error", err)
		}
	}
}

type joinPrompter struct {
	tg *telegram.Client
}

func (p *joinPrompter) SendJoinPrompt(chatID int64, channel string) error {
	msg := tgbotapi.NewMessage(chatID, ui.JoinPromptMessage(channel))
	msg.ReplyMarkup = telegram.SubscriptionKeyboard(channel)
	return p.tg.Send(msg)
}

type chatNotifier struct {
	tg *telegram.Client
}

func (n *chatNotifier) SendText(_ context.Context, chatID int64, text string) error {
	return n.tg.SendText(chatID, text)
}
