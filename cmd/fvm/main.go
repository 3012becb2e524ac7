package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/meridianfi/fvm/internal/clock"
	"github.com/meridianfi/fvm/internal/config"
	"github.com/meridianfi/fvm/internal/farming"
	"github.com/meridianfi/fvm/internal/logger"
	"github.com/meridianfi/fvm/internal/service"
	"github.com/meridianfi/fvm/internal/state"
	"github.com/meridianfi/fvm/internal/web"
)

// main is the entry point for the FVM engine host. It wires the persistence
// layer, the engine service and the web API, then waits for a shutdown
// signal. All state transitions arrive over the API and flow through the
// service layer; the process itself never moves tokens.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	farming.Verbose = config.Verbose
	log.Info().Msg("FVM Engine Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Create Engine Service with Dependency Injection ---
	svc, err := service.New(clock.System{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine service")
	}
	log.Info().Bool("dev", config.Dev).Msg("Engine service created successfully")

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = config.WebPort
	}

	webServer := web.NewWebServer(webPort, svc)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting FVM state API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Wait for Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
