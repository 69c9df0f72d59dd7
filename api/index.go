package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"cleanbuddy-dispatch/res/auth"
	"cleanbuddy-dispatch/res/config"
	"cleanbuddy-dispatch/res/lock"
	"cleanbuddy-dispatch/res/logging"
	"cleanbuddy-dispatch/res/mail"
	"cleanbuddy-dispatch/res/mail/sidemail"
	"cleanbuddy-dispatch/res/metrics"
	"cleanbuddy-dispatch/res/notification"
	"cleanbuddy-dispatch/res/notification/slack"
	"cleanbuddy-dispatch/res/storage"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/res/store/memory"
	"cleanbuddy-dispatch/res/store/postgresql"
	"cleanbuddy-dispatch/sys/billing"
	"cleanbuddy-dispatch/sys/dispatch"
	"cleanbuddy-dispatch/sys/http/handlers"
	"cleanbuddy-dispatch/sys/http/live"
	"cleanbuddy-dispatch/sys/jobs"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var logger = log.New(os.Stdout, "", log.LstdFlags|log.LUTC|log.Llongfile)

// CONFIGURATION CONVENTION:
// Every service is wired here from res/config, once per process. Required and optional
// settings are documented in res/config; optional integrations are left nil when unset
// and the components skip them.

// Global service instances initialized once
var (
	cfgInstance                 *config.Config
	storeInstance               store.Store
	authInstance                auth.Auth
	mailServiceInstance         mail.MailService
	notificationServiceInstance notification.NotificationService
	archiveInstance             *storage.GCSService
	redisInstance               *redis.Client
	metricsInstance             *metrics.DispatchMetrics
	billingInstance             *billing.Service
	dispatchInstance            *dispatch.Service
	hubInstance                 *live.Hub
	handlerInstance             http.Handler
	zapInstance                 = zap.NewNop()
	initOnce                    sync.Once
	initError                   error
)

func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(initialize)

	if initError != nil {
		logger.Fatalf("Failed to initialize services: %v", initError)
	}

	handlerInstance.ServeHTTP(w, r)
}

// Config returns the loaded configuration
func Config() (*config.Config, error) {
	initOnce.Do(initialize)
	return cfgInstance, initError
}

// AutoConfirmRunner builds the cron runner over the same billing service the API uses
func AutoConfirmRunner() (*jobs.AutoConfirmRunner, error) {
	initOnce.Do(initialize)
	if initError != nil {
		return nil, initError
	}

	return jobs.NewAutoConfirmRunner(&jobs.Config{
		Logger:   component("jobs"),
		Tenants:  storeInstance.Appointments(),
		Sweeper:  billingInstance,
		Schedule: cfgInstance.AutoConfirmSchedule,
	})
}

// Shutdown disconnects live boards and releases external clients
func Shutdown() {
	if hubInstance != nil {
		hubInstance.Close()
	}
	if archiveInstance != nil {
		if err := archiveInstance.Close(); err != nil {
			logger.Printf("Error closing storage client: %s", err)
		}
	}
	if redisInstance != nil {
		if err := redisInstance.Close(); err != nil {
			logger.Printf("Error closing redis client: %s", err)
		}
	}
	_ = zapInstance.Sync()
}

func initialize() {
	cfgInstance, initError = config.Load()
	if initError != nil {
		return
	}

	if z, err := logging.NewZap(cfgInstance.IsProduction()); err != nil {
		logger.Printf("Error building zap logger, keeping the standard logger: %s", err)
	} else {
		zapInstance = z
		logger = logging.StdLogger(zapInstance, "api")
	}

	storeInstance, initError = configStore(cfgInstance)
	if initError != nil {
		return
	}

	authInstance = auth.New(cfgInstance.JWTSecret)
	mailServiceInstance = configMail(cfgInstance)
	notificationServiceInstance = configNotification(cfgInstance)
	archiveInstance = configArchive(cfgInstance)
	redisInstance = configRedis(cfgInstance)
	metricsInstance = metrics.NewDispatchMetrics(nil)

	billingConfig := &billing.Config{
		Logger:              component("billing"),
		Store:               storeInstance,
		MailService:         mailServiceInstance,
		NotificationService: notificationServiceInstance,
		Metrics:             metricsInstance,
		DefaultCutoff:       cfgInstance.AutoConfirmCutoff(),
	}
	// Typed nils must not reach the interfaces
	if archiveInstance != nil {
		billingConfig.Archive = archiveInstance
	}
	if redisInstance != nil {
		billingConfig.Locker = lock.NewRedisLocker(redisInstance, "dispatch")
	}
	billingInstance = billing.New(billingConfig)

	hubInstance = live.NewHub(component("live"), nil)

	dispatchInstance = dispatch.New(&dispatch.Config{
		Logger:              component("dispatch"),
		Store:               storeInstance,
		Billing:             billingInstance,
		MailService:         mailServiceInstance,
		NotificationService: notificationServiceInstance,
		Publisher:           hubInstance,
		Metrics:             metricsInstance,
		SlotTick:            cfgInstance.SlotTick(),
		DragSnap:            cfgInstance.DragSnap(),
		CancellationWindow:  cfgInstance.CancellationWindow(),
	})

	handlerInstance = handlers.New(&handlers.Config{
		Logger:      component("http"),
		Store:       storeInstance,
		Auth:        authInstance,
		Dispatch:    dispatchInstance,
		Live:        hubInstance,
		Production:  cfgInstance.IsProduction(),
		FrontendURL: cfgInstance.FrontendURL,
	})
}

// component returns the logger handed to one component
func component(name string) *log.Logger {
	if zapInstance.Core().Enabled(zap.InfoLevel) {
		return logging.StdLogger(zapInstance, name)
	}
	return log.New(logger.Writer(), "("+name+") ", log.LstdFlags|log.LUTC)
}

func configStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Printf("STORE_DRIVER=memory, data is kept in process and lost on restart")
		return memory.New(), nil
	}

	rawStore, err := postgresql.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return rawStore, nil
}

func configMail(cfg *config.Config) mail.MailService {
	if cfg.SidemailAPIKey == "" {
		logger.Printf("SIDEMAIL_API_KEY not set, email service disabled")
		return nil
	}

	return sidemail.New(cfg.SidemailAPIKey, cfg.SidemailAPIURL, cfg.SidemailFromAddress, 10*time.Second, component("sidemail"))
}

func configNotification(cfg *config.Config) notification.NotificationService {
	if cfg.SlackWebhookURL == "" {
		logger.Printf("SLACK_WEBHOOK_URL not set, notifications disabled")
		return nil
	}

	return slack.New(cfg.SlackWebhookURL, cfg.SlackTimeout(), component("slack"))
}

func configArchive(cfg *config.Config) *storage.GCSService {
	if cfg.GCSInvoiceBucket == "" {
		logger.Printf("GCS_INVOICE_BUCKET not set, invoice archive disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	archive, err := storage.NewGCSService(ctx, cfg.GCSInvoiceBucket, cfg.GCSProjectID, cfg.GCSCredentialsPath)
	if err != nil {
		logger.Printf("Error creating storage client, invoice archive disabled: %s", err)
		return nil
	}
	return archive
}

func configRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not set, sweeps run without the tenant lock")
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
