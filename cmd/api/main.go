package main

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"aadhar-otp/internal/config"
	"aadhar-otp/internal/server"
	"aadhar-otp/internal/utils"
)

func main() {
	cfg := config.Load()
	utils.SetupLogger(cfg.Environment, cfg.LogLevel)

	s := server.NewServer(cfg)

	done := make(chan bool, 1)

	go s.GracefulShutdown(done)

	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
