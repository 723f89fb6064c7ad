package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/config"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dependencies are the domain services the REST API exposes
type Dependencies struct {
	Series       tide.Series
	Configurator *forecast.Configurator
	Runner       *forecast.Runner
	// Pretrained is optional; /api/forecast/pretrained is only routed when set
	Pretrained forecast.Model
}

// Controller represents the REST server controller
type Controller struct {
	ctx             context.Context
	wg              *sync.WaitGroup
	restConfig      config.RESTServerData
	Server          http.Server
	series          tide.Series
	configurator    *forecast.Configurator
	runner          *forecast.Runner
	pretrained      forecast.Model
	fitLimiter      *rate.Limiter
	validate        *validator.Validate
	shutdownTimeout time.Duration
	logger          *zap.SugaredLogger
	handlers        *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, deps Dependencies, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Configurator == nil {
		return nil, errors.New("REST server requires a forecast configurator")
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		restConfig:   rc,
		series:       deps.Series,
		configurator: deps.Configurator,
		runner:       deps.Runner,
		pretrained:   deps.Pretrained,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
	}

	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}

	ctrl.shutdownTimeout = 10 * time.Second
	if rc.ShutdownTimeout != "" {
		d, err := time.ParseDuration(rc.ShutdownTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid rest.shutdown-timeout %q: %w", rc.ShutdownTimeout, err)
		}
		ctrl.shutdownTimeout = d
	}

	// Fits are expensive; a zero rate disables the limit
	if rc.FitRatePerMinute > 0 {
		burst := rc.FitBurst
		if burst < 1 {
			burst = 1
		}
		ctrl.fitLimiter = rate.NewLimiter(rate.Limit(rc.FitRatePerMinute/60), burst)
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second
	ctrl.restConfig = rc

	return ctrl, nil
}

// StartController starts the REST server and stops it when the controller's
// context is cancelled
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()
		if err := c.Server.Shutdown(ctx); err != nil {
			c.logger.Warnf("REST server shutdown: %v", err)
		}
	}()

	return nil
}

// Handler returns the routed HTTP handler
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoveryMiddleware(c.logger), loggingMiddleware(c.logger, []string{"/healthz", "/metrics"}))

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handlers.Healthz).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/range", c.handlers.GetRange).Methods(http.MethodGet)
	api.HandleFunc("/readings", c.handlers.GetReadings).Methods(http.MethodGet)
	api.HandleFunc("/daily", c.handlers.GetDaily).Methods(http.MethodGet)
	api.HandleFunc("/summary", c.handlers.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/totals", c.handlers.GetTotals).Methods(http.MethodGet)
	api.HandleFunc("/yearly-mean", c.handlers.GetYearlyMean).Methods(http.MethodGet)

	api.Handle("/forecast", c.limitFits(http.HandlerFunc(c.handlers.PostForecast))).Methods(http.MethodPost)

	// The async endpoints only exist when a runner was wired in
	if c.runner != nil {
		api.HandleFunc("/forecast/jobs", c.handlers.ListForecastJobs).Methods(http.MethodGet)
		api.Handle("/forecast/jobs", c.limitFits(http.HandlerFunc(c.handlers.SubmitForecastJob))).Methods(http.MethodPost)
		api.HandleFunc("/forecast/jobs/{id}", c.handlers.GetForecastJob).Methods(http.MethodGet)
		api.HandleFunc("/forecast/jobs/{id}", c.handlers.CancelForecastJob).Methods(http.MethodDelete)
	}

	if c.pretrained != nil {
		api.HandleFunc("/forecast/pretrained", c.handlers.GetPretrainedForecast).Methods(http.MethodGet)
	}

	return router
}
