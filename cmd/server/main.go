// Server wires the identity service: config, OTel providers, Postgres (or the
// in-memory stores when DATABASE_URL is unset), the command dispatcher, the
// registration event bus (Kafka when KAFKA_BROKERS is set, in-process
// otherwise), and the auth orchestrator. Transport handlers attach here.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity-core/internal/audit"
	auditrepo "identity-core/internal/audit/repository"
	"identity-core/internal/command"
	"identity-core/internal/config"
	"identity-core/internal/db"
	"identity-core/internal/event"
	identityrepo "identity-core/internal/identity/repository"
	"identity-core/internal/identity/service"
	"identity-core/internal/oauthstate"
	profilerepo "identity-core/internal/profile/repository"
	"identity-core/internal/provider/apple"
	"identity-core/internal/provider/google"
	"identity-core/internal/saga"
	"identity-core/internal/security"
	"identity-core/internal/telemetry"
	otelsetup "identity-core/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "identity-core", false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	var (
		identities identityrepo.Repository
		profiles   profilerepo.Repository
		auditStore auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		identities = identityrepo.NewPostgresRepository(pool)
		profiles = profilerepo.NewPostgresRepository(pool)
		auditStore = auditrepo.NewPostgres(pool)
	} else {
		log.Println("DATABASE_URL is not set; using in-memory stores (dev only)")
		identities = identityrepo.NewMemory()
		profiles = profilerepo.NewMemory()
	}

	dispatcher := command.NewDispatcher()

	var events event.Bus
	if len(brokers) > 0 {
		publisher := event.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		defer publisher.Close()
		events = publisher
		log.Printf("registration events go to kafka topic %s; run cmd/worker for the saga", cfg.KafkaTopic)
	} else {
		bus := event.NewMemoryBus()
		saga.NewRegistration(dispatcher).Register(bus)
		events = bus
	}

	command.NewHandlers(identities, profiles, events).RegisterAll(dispatcher)

	tokens := security.NewTokenProvider(
		[]byte(cfg.JWTAccessSecret),
		[]byte(cfg.JWTRefreshSecret),
		cfg.JWTIssuer,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)

	googleVerifier := google.NewVerifier(google.Config{
		WebClientID:     cfg.GoogleWebClientID,
		WebClientSecret: cfg.GoogleWebClientSecret,
		WebRedirectURL:  cfg.GoogleWebRedirectURL,
		IOSClientID:     cfg.GoogleIOSClientID,
		AndroidClientID: cfg.GoogleAndroidClientID,
	})
	appleVerifier := apple.NewVerifier(apple.Config{
		IOSClientID:     cfg.AppleIOSClientID,
		AndroidClientID: cfg.AppleAndroidClientID,
		ExtraAudiences:  cfg.AppleExtraAudiencesList(),
		TeamID:          cfg.AppleTeamID,
		KeyID:           cfg.AppleKeyID,
		PrivateKeyPEM:   cfg.ApplePrivateKey,
	})

	auditLogger := audit.NewLogger(auditStore, otelsetup.NewEventEmitter(providers.LoggerProvider))

	svc := service.NewAuthService(
		identities,
		profiles,
		dispatcher,
		security.NewHasher(cfg.BcryptCost),
		tokens,
		googleVerifier,
		appleVerifier,
		oauthstate.NewMemoryStore(),
		auditLogger,
		cfg.RegistrationWait(),
	)
	_ = svc // transport handlers consume the service

	log.Println("identity-core ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("stopped")
}
