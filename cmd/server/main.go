package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uav-fleet-server/internal/config"
	"uav-fleet-server/internal/geocode"
	"uav-fleet-server/internal/handler"
	"uav-fleet-server/internal/middleware"
	"uav-fleet-server/internal/repository"
	"uav-fleet-server/internal/service"
	"uav-fleet-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	deviceRepo := repository.NewDeviceRepository(client, cfg.Database.Name)
	sessionRepo := repository.NewFlightSessionRepository(client, cfg.Database.Name)
	zoneRepo := repository.NewNoFlyZoneRepository(client, cfg.Database.Name)

	// WebSocket manager and event fan-out
	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()
	notifier := websocket.NewNotifier(wsManager)

	geocoder := geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.Language, cfg.Geocoder.Timeout)
	deviceLocks := service.NewDeviceLocks()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo)
	deviceService := service.NewDeviceService(deviceRepo)
	zoneService := service.NewZoneService(zoneRepo)
	ingestService := service.NewIngestService(deviceRepo, sessionRepo, zoneService, geocoder, notifier, deviceLocks)
	flightService := service.NewFlightService(deviceRepo, sessionRepo, geocoder, notifier, deviceLocks)
	adminService := service.NewAdminService(userRepo, deviceRepo, sessionRepo, notifier)

	monitor := service.NewMonitor(
		deviceRepo,
		sessionRepo,
		geocoder,
		notifier,
		deviceLocks,
		cfg.Monitor.SweepPeriod,
		cfg.Monitor.TimeoutThreshold,
		cfg.Monitor.CloseEpsilon,
	)
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go monitor.Run(monitorCtx)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	deviceHandler := handler.NewDeviceHandler(deviceService, flightService)
	ingestHandler := handler.NewIngestHandler(ingestService)
	nfzHandler := handler.NewNoFlyZoneHandler(zoneService)
	adminHandler := handler.NewAdminHandler(adminService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	// Telemetry routes are device-facing and carry no user token.
	api.HandleFunc("/ingest", ingestHandler.ReportPosition).Methods("POST", "OPTIONS")
	api.HandleFunc("/ingest/raw/{protocol}", ingestHandler.ReportRaw).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/users/me/password", userHandler.ChangePassword).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/devices", deviceHandler.Register).Methods("POST", "OPTIONS")
	protected.HandleFunc("/devices", deviceHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/devices/{id}", deviceHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/devices/{id}/history", deviceHandler.FlightHistory).Methods("GET", "OPTIONS")
	protected.HandleFunc("/devices/{id}/start", deviceHandler.StartFlight).Methods("POST", "OPTIONS")
	protected.HandleFunc("/devices/{id}/stop", deviceHandler.StopFlight).Methods("POST", "OPTIONS")

	// Zone reads are open to every authenticated user; zone mutation is
	// admin-only but lives on the same path prefix.
	protected.HandleFunc("/nfz", nfzHandler.ListActive).Methods("GET", "OPTIONS")
	protected.Handle("/nfz/all", middleware.AdminOnly(http.HandlerFunc(nfzHandler.ListAll))).Methods("GET", "OPTIONS")
	protected.Handle("/nfz", middleware.AdminOnly(http.HandlerFunc(nfzHandler.Create))).Methods("POST", "OPTIONS")
	protected.Handle("/nfz/{id}", middleware.AdminOnly(http.HandlerFunc(nfzHandler.Update))).Methods("PUT", "OPTIONS")
	protected.Handle("/nfz/{id}", middleware.AdminOnly(http.HandlerFunc(nfzHandler.Delete))).Methods("DELETE", "OPTIONS")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminOnly)

	admin.HandleFunc("/stats", adminHandler.Stats).Methods("GET", "OPTIONS")
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods("GET", "OPTIONS")
	admin.HandleFunc("/users/{id}/lock", adminHandler.ToggleUserLock).Methods("PUT", "OPTIONS")
	admin.HandleFunc("/devices", adminHandler.ListDevices).Methods("GET", "OPTIONS")
	admin.HandleFunc("/devices/{id}/lock", adminHandler.ToggleDeviceLock).Methods("PUT", "OPTIONS")
	admin.HandleFunc("/devices/{id}", adminHandler.DeleteDevice).Methods("DELETE", "OPTIONS")
	admin.HandleFunc("/notify", adminHandler.NotifyUser).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	// Health endpoint
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting UAV Fleet Server on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	stopMonitor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"uav-fleet-server"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"UAV Fleet Server API","version":"1.0.0","endpoints":{"/api/v1/auth/register":"POST","/api/v1/auth/login":"POST","/api/v1/ingest":"POST","/api/v1/devices":"GET (protected)","/api/v1/nfz":"GET (protected)","/ws":"WebSocket"}}`))
}
