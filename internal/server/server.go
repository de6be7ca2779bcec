package server

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/satriadwik/dealroom-be/internal/config"
	"github.com/satriadwik/dealroom-be/internal/handler"
	"github.com/satriadwik/dealroom-be/internal/middleware"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

type Server struct {
	echo               *echo.Echo
	cfg                *config.Config
	logger             *logger.Logger
	transactionHandler *handler.TransactionHandler
	paymentHandler     *handler.PaymentHandler
	listingHandler     *handler.ListingHandler
	healthHandler      *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	transactionHandler *handler.TransactionHandler,
	paymentHandler *handler.PaymentHandler,
	listingHandler *handler.ListingHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo:               e,
		cfg:                cfg,
		logger:             log,
		transactionHandler: transactionHandler,
		paymentHandler:     paymentHandler,
		listingHandler:     listingHandler,
		healthHandler:      healthHandler,
	}
}

func (s *Server) Start() error {
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)

	tx := s.echo.Group("/transactions")
	tx.POST("", s.transactionHandler.Create)
	tx.GET("/:id", s.transactionHandler.Get)
	tx.GET("/:id/view", s.transactionHandler.View)
	tx.POST("/:id/approve", s.transactionHandler.Approve)
	tx.POST("/:id/review", s.transactionHandler.ApproveDeposit)
	tx.POST("/:id/final-review", s.transactionHandler.EnterFinalReview)
	tx.POST("/:id/cancel", s.transactionHandler.Cancel)
	tx.POST("/:id/dispute", s.transactionHandler.Dispute)
	tx.GET("/:id/messages", s.transactionHandler.ListMessages)
	tx.POST("/:id/messages", s.transactionHandler.PostMessage)

	tx.POST("/:id/checkout", s.paymentHandler.Checkout)
	tx.POST("/:id/payments/confirm", s.paymentHandler.Confirm)
	tx.POST("/:id/bank-claims", s.paymentHandler.BankClaim)
	tx.POST("/:id/bank-claims/confirm", s.paymentHandler.ConfirmBankClaim)

	s.echo.GET("/payments/return", s.paymentHandler.Return)
	s.echo.POST("/webhooks/payment", s.paymentHandler.Webhook)

	s.echo.POST("/listings", s.listingHandler.Create)
	s.echo.GET("/listings/:id", s.listingHandler.Get)
}

func (s *Server) Handler() *echo.Echo {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}
