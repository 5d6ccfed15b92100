package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"waflow/internal/constants"
	"waflow/internal/database"
	"waflow/internal/middleware"
	"waflow/internal/models"
	"waflow/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ServerDeps bundles everything the HTTP surface needs.
type ServerDeps struct {
	DB          *database.Database
	Dispatcher  *service.Dispatcher
	Rate        *service.RateController
	RiskEngine  *service.RiskEngine
	Engagement  *service.EngagementTracker
	SendTime    *service.SendTimeOptimizer
	Health      *service.HealthMonitor
	Webhooks    *service.WebhookProcessor
	ContactSync *service.ContactSync
	Hub         *service.EventHub
	Gateway     service.GatewayProvider
}

type Server struct {
	router         *mux.Router
	logger         *logrus.Logger
	cfg            *models.Config
	deps           ServerDeps
	server         *http.Server
	webhookLimiter *rate.Limiter
}

func NewServer(cfg *models.Config, deps ServerDeps, logger *logrus.Logger) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		logger:         logger,
		cfg:            cfg,
		deps:           deps,
		webhookLimiter: rate.NewLimiter(rate.Limit(cfg.Server.WebhookRateLimit), cfg.Server.WebhookRateBurst),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	webhook := s.router.PathPrefix("/webhook/whatsapp").Subrouter()
	webhook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "whatsapp"))
	webhook.HandleFunc("", s.handleGatewayWebhook()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Read-only operator endpoints
	api.HandleFunc("/accounts", s.handleListAccounts()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/health", s.handleAccountHealth()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/quota", s.handleAccountQuota()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/risk", s.handleRiskHistory()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/engagement", s.handleEngagementStats()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/heatmap", s.handleHeatmap()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/send-time", s.handleSendTime()).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/campaigns", s.handleListCampaigns()).Methods(http.MethodGet)
	api.HandleFunc("/campaigns/{id:[0-9]+}", s.handleGetCampaign()).Methods(http.MethodGet)
	api.HandleFunc("/dispatcher", s.handleDispatcherStatus()).Methods(http.MethodGet)

	// Mutating endpoints require the admin token
	admin := api.NewRoute().Subrouter()
	admin.Use(s.requireAdminToken)
	admin.HandleFunc("/accounts", s.handleCreateAccount()).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/limit-override", s.handleSetLimitOverride()).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/risk/reset", s.handleResetRisk()).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/contacts/sync", s.handleContactSync()).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/contacts/validate", s.handleValidatePeer()).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/campaigns", s.handleCreateCampaign()).Methods(http.MethodPost)
	admin.HandleFunc("/campaigns/{id:[0-9]+}/recipients", s.handleAddRecipients()).Methods(http.MethodPost)
	admin.HandleFunc("/campaigns/{id:[0-9]+}/start", s.handleStartCampaign()).Methods(http.MethodPost)
	admin.HandleFunc("/campaigns/{id:[0-9]+}/pause", s.handlePauseCampaign()).Methods(http.MethodPost)
	admin.HandleFunc("/campaigns/{id:[0-9]+}/resume", s.handleResumeCampaign()).Methods(http.MethodPost)

	// Live event feed
	s.router.HandleFunc("/ws/events", s.handleEventFeed())
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (s *Server) handleGatewayWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.webhookLimiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, constants.MaxWebhookBodyBytes)
		body, err := verifyWebhookSignature(r, s.cfg.Server.WebhookSecret)
		if err != nil {
			s.logger.WithError(err).Warn("Webhook signature verification failed")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		payload, err := parseWebhookPayload(body)
		if err != nil {
			s.logger.WithError(err).Warn("Malformed webhook payload")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// Ack immediately; the gateway retries on non-200 and we never
		// want ack processing latency to stall it.
		w.WriteHeader(http.StatusOK)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.deps.Webhooks.Process(ctx, payload); err != nil {
				s.logger.WithError(err).WithField("event", payload.Event).Error("Webhook processing failed")
			}
		}()
	}
}

func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.cfg.Server.AdminToken
		if token == "" {
			http.Error(w, "admin API disabled: no admin token configured", http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
