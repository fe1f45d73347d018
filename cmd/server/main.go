package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"crm-backend/internal/config"
	"crm-backend/internal/db"
	"crm-backend/internal/geo"
	"crm-backend/internal/handler"
	"crm-backend/internal/identity"
	"crm-backend/internal/observability"
	"crm-backend/internal/ports"
	"crm-backend/internal/repository"
	"crm-backend/internal/resilience"
	"crm-backend/internal/server"
	"crm-backend/internal/service"
	"crm-backend/internal/storage"
	"crm-backend/internal/supabase"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func main() {
	cfg, err := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer pg.Close()

	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	retry := resilience.Config{MaxRetries: cfg.ExternalMaxRetries, InitialBackoff: cfg.ExternalInitialBackoff}

	var sb *supabase.Client
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		sb = supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceRoleKey,
			resilience.NewCircuitBreaker("supabase"), retry, logger, metrics)
	}

	// repositories
	customerRepo := repository.CustomerRepository{DB: pg}
	visitRepo := repository.VisitRepository{DB: pg}
	taskRepo := repository.TaskRepository{DB: pg}
	profileRepo := repository.ProfileRepository{DB: pg}
	statsRepo := repository.DashboardRepository{DB: pg}
	identityRepo := repository.IdentityRepository{DB: pg}

	identities, verifier, err := identityProvider(ctx, cfg, sb, identityRepo, metrics, logger)
	if err != nil {
		logger.Fatal("failed to init identity provider", zap.String("provider", cfg.IdentityProvider), zap.Error(err))
	}
	photos, err := objectStore(ctx, cfg, sb, metrics)
	if err != nil {
		logger.Fatal("failed to init object store", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	places := geo.Nominatim{
		BaseURL:        cfg.GeocoderURL,
		UserAgent:      cfg.GeocoderUserAgent,
		HTTPClient:     &http.Client{},
		PreciseTimeout: cfg.GeocoderPreciseTimeout,
		RelaxedTimeout: cfg.GeocoderRelaxedTimeout,
		Metrics:        metrics,
	}

	// services
	gate := service.AccessGate{
		Profiles: profileRepo,
		Policy:   service.DefaultPolicy(service.ParseRoles(cfg.ResetPasswordRoles)),
		Logger:   logger,
		Metrics:  metrics,
	}
	pipelineSvc := service.PipelineService{Customers: customerRepo, Gate: gate}
	visitSvc := service.VisitService{
		Visits:   visitRepo,
		Tasks:    taskRepo,
		Pipeline: pipelineSvc,
		Photos:   photos,
		Places:   places,
		Gate:     gate,
		Logger:   logger,
		Metrics:  metrics,
	}
	customerSvc := service.CustomerService{
		Customers: customerRepo,
		Visits:    visitRepo,
		Photos:    photos,
		Gate:      gate,
		Logger:    logger,
		Metrics:   metrics,
	}
	analyticsSvc := service.AnalyticsService{Stats: statsRepo, Profiles: profileRepo, Gate: gate}
	adminSvc := service.AdminService{
		Gate:       gate,
		Identities: identities,
		Profiles:   profileRepo,
		Customers:  customerRepo,
		Tasks:      taskRepo,
		Visits:     visitRepo,
		Logger:     logger,
		Metrics:    metrics,
	}

	// handlers
	handlers := server.Handlers{
		Health:    handler.HealthHandler{DB: pg},
		Customers: handler.CustomerHandler{Service: customerSvc, Pipeline: pipelineSvc, MaxUploadBytes: cfg.MaxUploadBytes},
		Visits:    handler.VisitHandler{Service: visitSvc, MaxUploadBytes: cfg.MaxUploadBytes},
		Tasks:     handler.TaskHandler{Service: service.TaskService{Tasks: taskRepo}},
		Profile:   handler.ProfileHandler{Service: service.ProfileService{Profiles: profileRepo, Identities: identities, Logger: logger, Metrics: metrics}},
		Dashboard: handler.DashboardHandler{Service: service.DashboardService{Tasks: taskRepo, Visits: visitRepo, Customers: customerRepo}},
		Analytics: handler.AnalyticsHandler{Service: analyticsSvc},
		Admin:     handler.AdminHandler{Service: adminSvc, Analytics: analyticsSvc},
	}
	if cfg.IdentityProvider == config.IdentityLocal {
		handlers.Auth = &handler.AuthHandler{Service: service.AuthService{Config: cfg, Credentials: identityRepo, Logger: logger}}
	}

	opts := server.RouterOptions{Verifier: verifier, Logger: logger, Metrics: metrics}
	if cfg.StorageDriver == config.StorageLocal {
		opts.UploadDir = cfg.UploadDir
	}
	router := server.NewRouter(opts, handlers)

	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// identityProvider returns the registry used by the admin console and the
// verifier for bearer tokens issued by the same provider.
func identityProvider(ctx context.Context, cfg config.Config, sb *supabase.Client, local repository.IdentityRepository, metrics *observability.Metrics, logger *zap.Logger) (ports.IdentityRegistry, server.TokenVerifier, error) {
	switch cfg.IdentityProvider {
	case config.IdentitySupabase:
		return sb, server.HMACVerifier{Secret: cfg.JWTSecret}, nil
	case config.IdentityFirebase:
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, firebaseOptions(cfg)...)
		if err != nil {
			return nil, nil, fmt.Errorf("init firebase app: %w", err)
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return identity.Firebase{Client: client, Metrics: metrics, Logger: logger.Named("firebase")}, server.FirebaseVerifier{Client: client}, nil
	default:
		return identity.Local{Store: local}, server.HMACVerifier{Secret: cfg.JWTSecret}, nil
	}
}

func objectStore(ctx context.Context, cfg config.Config, sb *supabase.Client, metrics *observability.Metrics) (ports.ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageSupabase:
		return sb.Bucket(cfg.StorageBucket), nil
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return storage.S3{Client: client, Bucket: cfg.StorageBucket, PublicBaseURL: cfg.S3PublicBaseURL, Metrics: metrics}, nil
	default:
		return storage.Dir{Root: cfg.UploadDir, Bucket: cfg.StorageBucket, PublicBaseURL: cfg.PublicBaseURL}, nil
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
