package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"inout-backend/internal/attendance"
	"inout-backend/internal/config"
	"inout-backend/internal/handler"
	"inout-backend/internal/repository"
	"inout-backend/internal/server"
	"inout-backend/internal/service"
	"inout-backend/internal/store"
	"inout-backend/internal/tenant"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tenant codec and persisted config. A previously applied QR
	// overrides the configured project id at boot.
	codec, err := tenant.NewCodec(cfg.QRSecret)
	if err != nil {
		logger.Error("failed to init tenant codec", "err", err)
		os.Exit(1)
	}
	tenantStore := &tenant.ConfigStore{Path: cfg.TenantConfigPath, Codec: codec}
	bootPayload, err := tenantStore.Load()
	if err != nil {
		logger.Error("failed to load tenant config", "err", err)
		os.Exit(1)
	}
	projectID := cfg.FirebaseProjectID
	if bootPayload != nil {
		projectID = bootPayload.TenantProjectID
		logger.Info("booting with applied tenant", "company", bootPayload.CompanyName, "projectId", projectID)
	}

	var (
		st       store.Store
		health   handler.HealthChecker
		rebinder tenant.Rebinder
	)
	switch cfg.StoreDriver {
	case "firestore":
		fs, err := store.NewFirestore(ctx, projectID, firebaseOptions(cfg)...)
		if err != nil {
			logger.Error("failed to init firestore store", "err", err)
			os.Exit(1)
		}
		st = fs
		rebinder = fs
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect database", "err", err)
			os.Exit(1)
		}
		st = pg
		health = pg
	case "memory":
		st = store.NewMemory()
	}
	defer st.Close()

	// Firebase Auth (optional; required for Google sign-in)
	var firebaseAuth *auth.Client
	if projectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, firebaseOptions(cfg)...)
		if err != nil {
			logger.Error("failed to init firebase app", "err", err)
			os.Exit(1)
		}
		client, err := app.Auth(ctx)
		if err != nil {
			logger.Error("failed to init firebase auth", "err", err)
			os.Exit(1)
		}
		firebaseAuth = client
	}

	// repositories
	userRepo := repository.Users{Store: st}
	locationRepo := repository.Locations{Store: st}
	attendanceRepo := repository.Attendance{Store: st}

	// services
	authSvc := service.AuthService{Config: cfg, Users: userRepo, Logger: logger, FirebaseAuth: firebaseAuth}
	sessions := &attendance.SessionManager{
		Users:      userRepo,
		Locations:  locationRepo,
		Attendance: attendanceRepo,
		Logger:     logger,
		Now:        time.Now,
	}
	defer sessions.Close()
	tenantMgr := &tenant.Manager{Codec: codec, Store: tenantStore, Rebinder: rebinder, Logger: logger}

	// handlers
	healthHandler := handler.HealthHandler{Checker: health}
	authHandler := handler.AuthHandler{Service: &authSvc}
	userHandler := handler.UserHandler{Users: userRepo, Locations: locationRepo}
	locationHandler := handler.LocationHandler{Repo: locationRepo}
	attendanceHandler := handler.AttendanceHandler{Sessions: sessions}
	historyHandler := handler.HistoryHandler{Users: userRepo, Attendance: attendanceRepo}
	tenantHandler := handler.TenantHandler{Manager: tenantMgr, DefaultCompanyName: cfg.CompanyName}

	router := server.NewRouter(cfg, logger, healthHandler, authHandler, userHandler, locationHandler, attendanceHandler, historyHandler, tenantHandler)

	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func firebaseOptions(cfg config.Config) []option.ClientOption {
	if cfg.FirebaseCredFile == "" {
		return nil
	}

	cred := cfg.FirebaseCredFile
	// Allow inline JSON or base64-encoded JSON in env to avoid writing a file.
	if strings.HasPrefix(strings.TrimSpace(cred), "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cred))}
	}
	if decoded, err := base64.StdEncoding.DecodeString(cred); err == nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
		return []option.ClientOption{option.WithCredentialsJSON(decoded)}
	}

	return []option.ClientOption{option.WithCredentialsFile(cred)}
}
