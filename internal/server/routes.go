package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aadhar-otp/internal/handlers"
	"aadhar-otp/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.RequestLogger)
	r.Use(s.promMetrics.Instrument)

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/health", ch.HealthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.registerOTPRoutes(r)

	return middlewares.Cors(s.cfg.AllowedOrigins)(r)
}

func (s *Server) registerOTPRoutes(r *mux.Router) {
	oh := handlers.NewOTPHandler(s.otpService)

	otp := r.NewRoute().Subrouter()
	otp.Use(s.limiter.Limit)
	otp.HandleFunc("/send-otp", oh.SendOTP).Methods(http.MethodPost)
	otp.HandleFunc("/verify-otp", oh.VerifyOTP).Methods(http.MethodPost)
}
