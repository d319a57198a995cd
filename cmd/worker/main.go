// Worker runs the registration saga out of process: it consumes registration
// events from Kafka and executes the follow-up commands (profile creation,
// compensation) against the shared database.
// Set KAFKA_BROKERS, KAFKA_TOPIC, KAFKA_GROUP_ID, and DATABASE_URL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"identity-core/internal/command"
	"identity-core/internal/config"
	"identity-core/internal/db"
	"identity-core/internal/event"
	identityrepo "identity-core/internal/identity/repository"
	profilerepo "identity-core/internal/profile/repository"
	"identity-core/internal/saga"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	identities := identityrepo.NewPostgresRepository(pool)
	profiles := profilerepo.NewPostgresRepository(pool)

	// The saga's commands publish follow-up events back to the same topic.
	publisher := event.NewKafkaPublisher(brokers, cfg.KafkaTopic)
	defer publisher.Close()

	dispatcher := command.NewDispatcher()
	command.NewHandlers(identities, profiles, publisher).RegisterAll(dispatcher)

	consumer := event.NewKafkaConsumer(brokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	saga.NewRegistration(dispatcher).Register(consumer)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming %s (group %s)", cfg.KafkaTopic, cfg.KafkaGroupID)
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker: stopped")
}
