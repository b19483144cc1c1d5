package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/atelier/internal/config"
	documentdomain "github.com/smallbiznis/atelier/internal/document/domain"
	"github.com/smallbiznis/atelier/internal/export"
	notificationdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/observability"
	obsmiddleware "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	obstracing "github.com/smallbiznis/atelier/internal/observability/tracing"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/payment/checkout"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"github.com/smallbiznis/atelier/internal/payment/webhook"
	publicinvoicedomain "github.com/smallbiznis/atelier/internal/publicinvoice/domain"
	"github.com/smallbiznis/atelier/internal/quota"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	seqdomain "github.com/smallbiznis/atelier/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type checkoutSessions interface {
	CreateSession(ctx context.Context, invoiceID snowflake.ID) (*checkout.Session, error)
}

type webhookReconciler interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type quotaReporter interface {
	Usage(ctx context.Context, orgID snowflake.ID) (*quota.Usage, error)
}

type exporter interface {
	InvoicesCSV(ctx context.Context, orgID snowflake.ID, from, to time.Time) (*export.File, error)
	FEC(ctx context.Context, orgID snowflake.ID, year int) (*export.File, error)
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	db               *gorm.DB
	log              *zap.Logger
	documentSvc      documentdomain.Service
	sequenceSvc      seqdomain.Service
	organizationSvc  orgdomain.Service
	notificationSvc  notificationdomain.Service
	quotaSvc         quotaReporter
	exportSvc        exporter
	checkoutSvc      checkoutSessions
	webhookSvc       webhookReconciler
	paymentRepo      paymentdomain.Repository
	publicInvoiceSvc publicinvoicedomain.Service
	publicLimiter    *ratelimit.PublicLimiter
	obsMetrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	DB               *gorm.DB
	Log              *zap.Logger
	DocumentSvc      documentdomain.Service
	SequenceSvc      seqdomain.Service
	OrganizationSvc  orgdomain.Service
	NotificationSvc  notificationdomain.Service
	QuotaSvc         *quota.Service
	ExportSvc        *export.Service
	CheckoutSvc      *checkout.Service
	WebhookSvc       *webhook.Service
	PaymentRepo      paymentdomain.Repository
	PublicInvoiceSvc publicinvoicedomain.Service
	PublicLimiter    *ratelimit.PublicLimiter
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		db:               p.DB,
		log:              p.Log.Named("http"),
		documentSvc:      p.DocumentSvc,
		sequenceSvc:      p.SequenceSvc,
		organizationSvc:  p.OrganizationSvc,
		notificationSvc:  p.NotificationSvc,
		quotaSvc:         p.QuotaSvc,
		exportSvc:        p.ExportSvc,
		checkoutSvc:      p.CheckoutSvc,
		webhookSvc:       p.WebhookSvc,
		paymentRepo:      p.PaymentRepo,
		publicInvoiceSvc: p.PublicInvoiceSvc,
		publicLimiter:    p.PublicLimiter,
		obsMetrics:       p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerPublicRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/connect", s.HandleConnectWebhook)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")

	public.GET("/invoices/:id",
		ratelimit.Middleware(s.publicLimiter, "public_invoice", s.obsMetrics),
		s.GetPublicInvoice,
	)
	public.POST("/invoices/:id/checkout-session",
		ratelimit.Middleware(s.publicLimiter, "public_checkout", s.obsMetrics),
		s.CreatePublicCheckoutSession,
	)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/organizations", s.UserRequired(), s.CreateOrganization)

	scoped := api.Group("", s.OrgContext())

	scoped.GET("/organization", s.GetOrganization)
	scoped.PUT("/organization/stripe", s.SetStripeCredentials)
	scoped.PUT("/organization/connect", s.LinkConnectAccount)
	scoped.PUT("/organization/plan", s.ChangePlan)
	scoped.GET("/quota", s.GetQuota)

	scoped.POST("/invoices", s.CreateInvoice)
	scoped.GET("/invoices", s.ListInvoices)
	scoped.GET("/invoices/:id", s.GetInvoice)
	scoped.PUT("/invoices/:id/lines", s.UpdateInvoiceLines)
	scoped.POST("/invoices/:id/transition", s.TransitionInvoice)
	scoped.POST("/invoices/:id/delivered", s.MarkInvoiceDelivered)
	scoped.DELETE("/invoices/:id", s.DeleteInvoice)
	scoped.GET("/invoices/:id/payments", s.ListInvoicePayments)

	scoped.POST("/quotes", s.CreateQuote)
	scoped.GET("/quotes", s.ListQuotes)
	scoped.GET("/quotes/:id", s.GetQuote)
	scoped.PUT("/quotes/:id/lines", s.UpdateQuoteLines)
	scoped.POST("/quotes/:id/transition", s.TransitionQuote)
	scoped.POST("/quotes/:id/convert", s.ConvertQuote)
	scoped.POST("/quotes/:id/delivered", s.MarkQuoteDelivered)
	scoped.DELETE("/quotes/:id", s.DeleteQuote)

	scoped.GET("/sequences/:doc_type", s.GetSequence)
	scoped.PUT("/sequences/:doc_type", s.UpdateSequence)
	scoped.GET("/sequences/:doc_type/preview", s.PreviewSequence)

	scoped.GET("/exports/invoices.csv", s.ExportInvoicesCSV)
	scoped.GET("/exports/fec", s.ExportFEC)

	scoped.GET("/notifications", s.ListNotifications)
	scoped.POST("/notifications/:id/read", s.MarkNotificationRead)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
