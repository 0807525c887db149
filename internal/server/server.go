package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	billingoverviewdomain "github.com/smallbiznis/quotebook/internal/billingoverview/domain"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	"github.com/smallbiznis/quotebook/internal/config"
	conversiondomain "github.com/smallbiznis/quotebook/internal/conversion/domain"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
	obslogger "github.com/smallbiznis/quotebook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/quotebook/internal/payment/domain"
	quotedomain "github.com/smallbiznis/quotebook/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Gatherer prometheus.Gatherer `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// NewEngine builds the gin engine with the request middleware chain and the
// health and metrics endpoints.
func NewEngine(p EngineParams) *gin.Engine {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(p.Log.Named("http"), obslogger.MiddlewareConfig{
		Debug:           !p.Cfg.IsProduction(),
		ErrorClassifier: classifyError,
	}))
	r.Use(tracing.GinMiddleware())
	r.Use(metricsMiddleware(p.Metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if p.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func metricsMiddleware(m *obsmetrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

type Server struct {
	engine *gin.Engine
	log    *zap.Logger

	clientSvc          clientdomain.Service
	quoteSvc           quotedomain.Service
	invoiceSvc         invoicedomain.Service
	paymentSvc         paymentdomain.Service
	conversionSvc      conversiondomain.Service
	billingOverviewSvc billingoverviewdomain.Service
	auditSvc           auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin                *gin.Engine
	Log                *zap.Logger
	ClientSvc          clientdomain.Service
	QuoteSvc           quotedomain.Service
	InvoiceSvc         invoicedomain.Service
	PaymentSvc         paymentdomain.Service
	ConversionSvc      conversiondomain.Service
	BillingOverviewSvc billingoverviewdomain.Service `optional:"true"`
	AuditSvc           auditdomain.Service           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:             p.Gin,
		log:                p.Log.Named("server"),
		clientSvc:          p.ClientSvc,
		quoteSvc:           p.QuoteSvc,
		invoiceSvc:         p.InvoiceSvc,
		paymentSvc:         p.PaymentSvc,
		conversionSvc:      p.ConversionSvc,
		billingOverviewSvc: p.BillingOverviewSvc,
		auditSvc:           p.AuditSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClientByID)

	// -------- Quotes --------
	api.GET("/quotes", s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:id", s.GetQuoteByID)
	api.PATCH("/quotes/:id", s.UpdateQuote)
	api.DELETE("/quotes/:id", s.DeleteQuote)
	api.POST("/quotes/:id/status", s.SetQuoteStatus)
	api.POST("/quotes/:id/convert", s.ConvertQuote)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.POST("/invoices/:id/status", s.SetInvoiceStatus)

	// -------- Payments --------
	api.GET("/invoices/:id/payments", s.ListPayments)
	api.POST("/invoices/:id/payments", s.RecordPayment)

	// -------- Overview --------
	api.GET("/overview/quotes", s.GetQuoteOverview)
	api.GET("/overview/invoices", s.GetInvoiceOverview)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, _ *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
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

// parseID reads a snowflake path parameter.
func parseID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param(name))
	if err != nil || id == nil {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return *id, nil
}
