package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"aadhar-otp/internal/config"
	"aadhar-otp/internal/database"
	"aadhar-otp/internal/middlewares"
	"aadhar-otp/internal/repositories"
	"aadhar-otp/internal/services"
	"aadhar-otp/internal/utils"
)

type Server struct {
	port        int
	httpServer  *http.Server
	cfg         config.Config
	db          database.Service
	otpService  services.OTPService
	limiter     *middlewares.RateLimiter
	promMetrics *middlewares.PrometheusMiddleware
	background  context.Context
	stop        context.CancelFunc
}

func NewServer(cfg config.Config) *Server {
	db := database.New(cfg.MongoURI, cfg.MongoDB)

	otpRepo := repositories.NewOTPRepository(db)
	identityRepo := repositories.NewIdentityRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := otpRepo.EnsureIndexes(ctx, cfg.OTPRetention); err != nil {
		log.Error().Err(err).Msg("Failed to ensure OTP indexes")
	}
	cancel()

	otpService := services.NewOTPService(
		newContactResolver(cfg, identityRepo),
		otpRepo,
		utils.NewBcryptHasher(cfg.BcryptCost),
		services.NewEmailService(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
		services.OTPOptions{
			CallTimeout: cfg.CallTimeout,
			MaxAttempts: cfg.MaxAttempts,
		},
	)

	s := &Server{
		port:        cfg.Port,
		cfg:         cfg,
		db:          db,
		otpService:  otpService,
		limiter:     middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		promMetrics: middlewares.NewPrometheusMiddleware(prometheus.DefaultRegisterer),
	}
	s.background, s.stop = context.WithCancel(context.Background())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// newContactResolver picks the resolver for this deployment. The choice is
// made once at startup, never per request.
func newContactResolver(cfg config.Config, directory repositories.IdentityRepository) services.ContactResolver {
	if cfg.DevFallback {
		log.Warn().Str("fallback_email", cfg.FallbackEmail).Msg("Development fallback resolver enabled; unmapped identities get a fixed OTP")
		return services.NewDevelopmentFallbackResolver(directory, cfg.FallbackEmail, cfg.FallbackCode)
	}
	return services.NewProductionResolver(directory)
}

func (s *Server) Start() error {
	go s.limiter.Cleanup(s.background, time.Minute, 3*time.Minute)

	log.Info().Int("port", s.port).Str("env", s.cfg.Environment).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}
	s.stop()
	if err := s.db.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
	}

	log.Info().Msg("Server exiting")
	done <- true
}
