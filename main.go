package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/catalog"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/checkout"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/config"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/database"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/handlers"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/mailer"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/middleware"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/payments"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/repository"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/shipping"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal(err)
	}
	cfg := config.AppEnv

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal("mongo connection failed", zap.Error(err))
	}
	db := client.Database(cfg.DBName)
	logger.Info("MongoDB connected", zap.String("database", db.Name()))

	for _, err := range database.EnsureIndexes(db) {
		logger.Warn("index bootstrap failed", zap.Error(err))
	}

	handlers.RegisterValidators()

	var sender mailer.Sender = mailer.NewLogMailer(logger)
	if cfg.SMTPHost != "" {
		smtp, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, logger)
		if err != nil {
			logger.Warn("smtp disabled, emails will only be logged", zap.Error(err))
		} else {
			sender = smtp
		}
	}

	provider, err := payments.NewStripeProvider(payments.StripeConfig{APIKey: cfg.StripeSecretKey, Logger: logger})
	if err != nil {
		logger.Fatal("stripe setup failed", zap.Error(err))
	}
	verifier := payments.NewStripeVerifier(cfg.StripeWebhookSecret)

	catalogSvc := catalog.NewService(db)
	couponValidator := coupons.NewValidator(repository.NewCouponStore(db), nil)
	estimator := shipping.NewDistanceEstimator(
		shipping.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent, &http.Client{Timeout: 8 * time.Second}),
		logger,
	)
	orders := checkout.NewService(checkout.Deps{
		Store:       repository.NewCheckoutStore(db),
		Payments:    provider,
		Mailer:      sender,
		Logger:      logger,
		FrontendURL: cfg.FrontendURL,
		Currency:    cfg.Currency,
	})

	tokens := handlers.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(cfg.CORSOrigins))

	generalLimit := middleware.NewRateLimiter(100, 15*time.Minute, nil)
	loginLimit := middleware.NewRateLimiter(5, 15*time.Minute, nil)
	registerLimit := middleware.NewRateLimiter(3, time.Hour, nil)
	contactLimit := middleware.NewRateLimiter(5, time.Hour, nil)

	r.GET("/health", handlers.Health(db))

	// Stripe signs the raw body; keep this route outside the general limiter.
	r.POST("/api/webhooks/stripe", handlers.StripeWebhook(verifier, orders))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(generalLimit, "Demasiadas solicitudes, intenta más tarde"))

	auth := api.Group("/auth")
	{
		auth.POST("/register", middleware.RateLimit(registerLimit, "Demasiados registros, intenta más tarde"), handlers.Register(db, tokens))
		auth.POST("/login", middleware.RateLimit(loginLimit, "Demasiados intentos de inicio de sesión, intenta más tarde"), handlers.Login(db, tokens))
		auth.POST("/refresh", handlers.Refresh(db, tokens))
		auth.POST("/logout", handlers.Logout(db))
		auth.GET("/me", middleware.RequireAuth(cfg.JWTSecret), handlers.GetMe(db))
	}

	api.GET("/products", handlers.GetProducts(catalogSvc))
	api.GET("/products/categories", handlers.GetCategories(catalogSvc))
	api.GET("/products/:id", handlers.GetProduct(catalogSvc, db))

	orderRoutes := api.Group("/orders")
	{
		orderRoutes.POST("/checkout", middleware.OptionalAuth(cfg.JWTSecret), handlers.Checkout(orders))
		orderRoutes.GET("/my-orders", middleware.RequireAuth(cfg.JWTSecret), handlers.GetMyOrders(db))
		orderRoutes.GET("/session/:sessionId", handlers.GetOrderBySession(db))
	}

	user := api.Group("/user")
	user.Use(middleware.RequireAuth(cfg.JWTSecret))
	{
		user.GET("/addresses", handlers.GetUserAddresses(db))
		user.POST("/addresses", handlers.CreateUserAddress(db))
		user.PUT("/addresses/:id", handlers.UpdateUserAddress(db))
		user.DELETE("/addresses/:id", handlers.DeleteUserAddress(db))

		user.GET("/favorites", handlers.GetUserFavorites(db))
		user.POST("/favorites", handlers.AddUserFavorite(db))
		user.DELETE("/favorites/:productId", handlers.DeleteUserFavorite(db))
	}

	adminOnly := middleware.AdminAuth(cfg.JWTSecret)

	couponRoutes := api.Group("/coupons")
	{
		couponRoutes.POST("/validate", handlers.ValidateCoupon(couponValidator))
		couponRoutes.GET("", adminOnly, handlers.GetCoupons(db))
		couponRoutes.POST("", adminOnly, handlers.CreateCoupon(db))
		couponRoutes.PUT("/:id", adminOnly, handlers.UpdateCoupon(db))
		couponRoutes.DELETE("/:id", adminOnly, handlers.DeleteCoupon(db))
		couponRoutes.GET("/:id/stats", adminOnly, handlers.GetCouponStats(db))
	}

	api.POST("/shipping/calculate", handlers.CalculateShipping())
	api.POST("/shipping/estimate", handlers.EstimateShipping(estimator))

	reviews := api.Group("/reviews")
	{
		reviews.POST("", middleware.RequireAuth(cfg.JWTSecret), handlers.CreateReview(db))
		reviews.GET("/product/:productId", handlers.GetProductReviews(db))
		reviews.GET("/my-reviews", middleware.RequireAuth(cfg.JWTSecret), handlers.GetMyReviews(db))
		reviews.PUT("/:id", middleware.RequireAuth(cfg.JWTSecret), handlers.UpdateReview(db))
		reviews.DELETE("/:id", middleware.RequireAuth(cfg.JWTSecret), handlers.DeleteReview(db))

		reviews.GET("/admin/pending", adminOnly, handlers.GetPendingReviews(db))
		reviews.GET("/admin/all", adminOnly, handlers.GetAllReviews(db))
		reviews.PUT("/admin/:id/approve", adminOnly, handlers.ApproveReview(db))
		reviews.PUT("/admin/:id/reject", adminOnly, handlers.RejectReview(db))
	}

	api.POST("/contact", middleware.RateLimit(contactLimit, "Demasiados mensajes, intenta más tarde"), handlers.SubmitContact(db, sender, cfg.AdminEmail))

	suggestions := api.Group("/suggestions")
	suggestions.Use(adminOnly)
	{
		suggestions.GET("", handlers.GetSuggestions(db))
		suggestions.PATCH("/:id/leido", handlers.MarkSuggestionRead(db))
		suggestions.PATCH("/:id/respondido", handlers.MarkSuggestionResponded(db))
		suggestions.DELETE("/:id", handlers.DeleteSuggestion(db))
	}

	newsletter := api.Group("/newsletter")
	{
		newsletter.POST("/subscribe", handlers.Subscribe(db))
		newsletter.POST("/unsubscribe", handlers.Unsubscribe(db))
		newsletter.GET("/admin/subscribers", adminOnly, handlers.GetSubscribers(db))
		newsletter.DELETE("/admin/:id", adminOnly, handlers.DeleteSubscriber(db))
		newsletter.GET("/admin/export", adminOnly, handlers.ExportSubscribers(db))
	}

	admin := api.Group("/admin")
	admin.Use(adminOnly)
	{
		admin.GET("/reports", handlers.GetReports(db))

		admin.GET("/products", handlers.GetAllProducts(db))
		admin.POST("/products", handlers.CreateProduct(db))
		admin.PUT("/products/:id", handlers.UpdateProduct(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))

		admin.GET("/orders", handlers.GetAllOrders(db))
		admin.GET("/orders/:id", handlers.GetOrder(db))
		admin.PATCH("/orders/:id/status", handlers.UpdateOrderStatus(db))
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		checkout.NewSweeper(orders, cfg.PendingOrderTTL, cfg.SweepInterval).Run(sweepCtx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	cancelSweep()
	<-sweeperDone
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect", zap.Error(err))
	}
}
