package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/metrics"
	"github.com/nichesite/directory/internal/services/authorization"
)

// APIPrefix is the namespace of the REST endpoints
const APIPrefix = "/nichesitedirectory/v1"

// Handlers groups the HTTP handlers registered on the router
type Handlers struct {
	Relationships *RelationshipHandler
	Records       *RecordHandler
	Admin         *AdminHandler
	Map           *MapHandler
	Health        *HealthHandler
	Stats         *StatsHandler
}

// ServerOptions configures the HTTP router
type ServerOptions struct {
	Logger      *zap.Logger
	Guard       *authorization.Guard
	Collector   *metrics.Collector
	Exporter    *metrics.PrometheusExporter
	ServiceName string // enables tracing when set
}

// NewEcho builds the router with middleware and every route registered
func NewEcho(h *Handlers, opts ServerOptions) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(RequestContext())
	if opts.ServiceName != "" {
		e.Use(otelecho.Middleware(opts.ServiceName))
	}
	e.Use(RequestLogger(logger))
	if opts.Collector != nil {
		e.Use(metrics.EchoMiddleware(opts.Collector, opts.Exporter))
	}

	Register(e, h, opts.Guard)
	return e
}

// Register adds every route to e
func Register(e *echo.Echo, h *Handlers, guard *authorization.Guard) {
	editPosts := RequireCapability(guard, entities.CapabilityEditPosts)
	manageOptions := RequireCapability(guard, entities.CapabilityManageOptions)

	if h.Health != nil {
		e.GET("/healthz", h.Health.Healthz)
	}

	api := e.Group(APIPrefix)
	if h.Relationships != nil {
		api.POST("/update-relationship", h.Relationships.UpdateRelationship, editPosts)
		api.POST("/update-relationship/", h.Relationships.UpdateRelationship, editPosts)
		api.GET("/relationships", h.Relationships.ListRelationships, editPosts)
		api.POST("/reconcile", h.Relationships.Reconcile, manageOptions)
	}
	if h.Records != nil {
		api.POST("/records", h.Records.Create, editPosts)
		api.GET("/records/:id", h.Records.Get, editPosts)
		api.PUT("/records/:id", h.Records.Save, editPosts)
	}
	if h.Stats != nil {
		api.GET("/stats", h.Stats.Stats, manageOptions)
	}

	if h.Admin != nil {
		admin := e.Group("/admin", manageOptions)
		admin.GET("", h.Admin.Menu)
		admin.GET("/", h.Admin.Menu)
		admin.GET("/relationships", h.Admin.Relationships)
	}

	if h.Map != nil {
		e.GET("/companies/:id/map", h.Map.Snippet)
		e.GET("/companies/:id/location", h.Map.Location)
	}
}
