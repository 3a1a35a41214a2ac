package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/brieflabs/briefhub/internal/admin"
	"github.com/brieflabs/briefhub/internal/alerts"
	"github.com/brieflabs/briefhub/internal/auth"
	"github.com/brieflabs/briefhub/internal/brief"
	"github.com/brieflabs/briefhub/internal/config"
	"github.com/brieflabs/briefhub/internal/db"
	"github.com/brieflabs/briefhub/internal/messaging"
	mware "github.com/brieflabs/briefhub/internal/middleware"
	"github.com/brieflabs/briefhub/internal/payments"
	"github.com/brieflabs/briefhub/internal/user"
	"github.com/brieflabs/briefhub/internal/wallet"
	"github.com/brieflabs/briefhub/internal/withdrawal"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	db.EnsureSchema(ctx, pool)

	// Background email delivery
	notifier := alerts.NewNotifier(cfg.RedisAddr, cfg.AppURL)
	defer notifier.Close()
	if mailer, err := alerts.NewMailer(cfg); err != nil {
		log.Printf("mailer disabled: %v", err)
	} else {
		processor := alerts.NewProcessor(cfg.RedisAddr, mailer)
		processor.Start()
		defer processor.Shutdown()
	}

	// Ledger core
	walletRepo := wallet.NewPostgresRepository(pool)
	wallets := wallet.NewManager(walletRepo)
	walletHandler := wallet.NewHandler(wallets)

	// Payments: checkout sessions in, transfers out, webhooks reconciled
	gateway := payments.NewStripeGateway(cfg.StripeAPIBaseURL, cfg.StripeSecretKey,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	reconciler := payments.NewReconciler(wallets)
	paymentsHandler := payments.NewHandler(gateway, reconciler, cfg.StripeWebhookKey, pool, notifier)

	// Withdrawals
	withdrawalRepo := withdrawal.NewPostgresRepository(pool)
	withdrawals := withdrawal.NewService(withdrawalRepo, wallets, gateway)
	withdrawalHandler := withdrawal.NewHandler(withdrawals, pool, notifier)

	// Briefs and rewards
	briefRepo := brief.NewPostgresRepository(pool)
	briefs := brief.NewService(briefRepo, wallets)
	briefHandler := brief.NewHandler(briefs, pool, notifier)

	authHandler := auth.NewHandler(pool, cfg, notifier)
	userHandler := user.NewHandler(pool)
	messagingHandler := messaging.NewHandler(pool)
	alertsHandler := alerts.NewHandler(pool)
	adminHandler := admin.NewHandler(pool, wallets)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "briefhub"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public routes
	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/password/request", authHandler.RequestPasswordReset)
	authGroup.POST("/password/reset", authHandler.ResetPassword)
	authGroup.POST("/bootstrap-admin", authHandler.BootstrapAdmin)

	e.GET("/user/:id/profile", userHandler.GetPublicProfile)

	// The payment provider calls this; authenticated by signature, not JWT.
	e.POST("/webhooks/stripe", paymentsHandler.Webhook)

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWT(cfg.JWTSecret))

	api.GET("/auth/me", authHandler.Me)
	api.PATCH("/user/profile", userHandler.UpdateProfile)

	api.GET("/wallet/balance", walletHandler.Balance)
	api.GET("/wallet/transactions", walletHandler.Transactions)
	api.POST("/wallet/topup", paymentsHandler.CheckoutInit)

	api.POST("/wallet/withdraw", withdrawalHandler.Submit, mware.RequireRoles("creator"))
	api.GET("/wallet/withdrawals", withdrawalHandler.ListMine, mware.RequireRoles("creator"))

	api.POST("/briefs", briefHandler.Create, mware.RequireRoles("brand"))
	api.GET("/briefs", briefHandler.ListOpen)
	api.GET("/briefs/me", briefHandler.ListMine, mware.RequireRoles("brand"))
	api.GET("/briefs/:id", briefHandler.Get)
	api.POST("/briefs/:id/fund", briefHandler.Fund, mware.RequireRoles("brand"))
	api.POST("/briefs/:id/cancel", briefHandler.Cancel, mware.RequireRoles("brand"))
	api.POST("/briefs/:id/close", briefHandler.CloseForJudging, mware.RequireRoles("brand"))
	api.POST("/briefs/:id/entries", briefHandler.SubmitEntry, mware.RequireRoles("creator"))
	api.GET("/briefs/:id/entries", briefHandler.ListEntries)
	api.POST("/briefs/:id/winners", briefHandler.SelectWinners, mware.RequireRoles("brand"))
	api.GET("/briefs/:id/rewards", briefHandler.Rewards)

	api.POST("/conversations", messagingHandler.StartConversation)
	api.GET("/conversations", messagingHandler.ListConversations)
	api.POST("/conversations/:id/messages", messagingHandler.SendMessage)
	api.GET("/conversations/:id/messages", messagingHandler.ListMessages)
	api.GET("/conversations/:id/unread", messagingHandler.UnreadCount)
	api.POST("/conversations/:id/messages/:message_id/read", messagingHandler.MarkMessageRead)
	api.GET("/conversations/:id/ws", messagingHandler.ConversationWS)

	api.GET("/notifications", alertsHandler.List)
	api.POST("/notifications/:id/read", alertsHandler.MarkRead)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(mware.JWT(cfg.JWTSecret))
	adminGroup.Use(mware.AdminGuard)

	adminGroup.GET("/users", adminHandler.ListUsers)
	adminGroup.POST("/users/:id/suspend", adminHandler.SuspendUser)
	adminGroup.POST("/users/:id/activate", adminHandler.ActivateUser)
	adminGroup.GET("/wallets", adminHandler.ListWallets)
	adminGroup.GET("/transactions", adminHandler.ListTransactions)
	adminGroup.GET("/transactions/user/:id", adminHandler.ListUserTransactions)
	adminGroup.GET("/stats", adminHandler.Stats)
	adminGroup.GET("/ledger/audit", adminHandler.AuditLedger)
	adminGroup.GET("/ledger/audit/:id", adminHandler.AuditWallet)
	adminGroup.GET("/withdrawals/pending", withdrawalHandler.ListPending)
	adminGroup.POST("/withdrawals/:id/approve", withdrawalHandler.Approve)
	adminGroup.POST("/withdrawals/:id/reject", withdrawalHandler.Reject)

	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
