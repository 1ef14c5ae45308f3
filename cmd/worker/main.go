package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/infra/mongodb"
	"github.com/MinCore-Dev/mincore-ledger/internal/infra/rabbitmq"
)

const auditQueue = "audit_queue"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env not found, using system environment")
	}

	mongoURI := "mongodb://" + os.Getenv("MONGO_USER") + ":" + os.Getenv("MONGO_PASS") + "@" + envOr("MONGO_HOST", "localhost") + ":27017"
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mongo client")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("mongo is not responding")
	}
	log.Info().Msg("connected to mongodb")
	auditRepo := mongodb.NewAuditRepository(mongoClient, "mincore_ledger_audit")

	rabbitURL := "amqp://" + os.Getenv("RABBITMQ_USER") + ":" + os.Getenv("RABBITMQ_PASS") + "@" + envOr("RABBITMQ_HOST", "localhost") + ":5672/"
	conn, err := amqp.DialConfig(rabbitURL, amqp.Config{
		Properties: amqp.Table{"connection_name": "AuditWorker_Consumer"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open channel")
	}
	defer ch.Close()

	// One unacked message at a time keeps the worker from buffering events
	// it cannot store yet.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal().Err(err).Msg("failed to set qos")
	}

	if err := rabbitmq.DeclareExchange(ch); err != nil {
		log.Fatal().Err(err).Msg("failed to declare exchange")
	}

	q, err := ch.QueueDeclare(
		auditQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}

	if err := ch.QueueBind(q.Name, "balance.#", rabbitmq.Exchange, false, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to bind queue")
	}

	msgs, err := ch.Consume(
		q.Name,
		"audit_worker",
		false, // manual ack: events are acked only after the mongo write
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	notifyClose := make(chan *amqp.Error)
	ch.NotifyClose(notifyClose)

	log.Info().Str("queue", q.Name).Msg("audit worker started")

	go func() {
		for {
			select {
			case err := <-notifyClose:
				if err != nil {
					log.Error().Err(err).Msg("rabbitmq channel closed")
					os.Exit(1)
				}
				return
			case d, ok := <-msgs:
				if !ok {
					log.Error().Msg("message channel closed")
					os.Exit(1)
				}
				handleDelivery(d, auditRepo)
			}
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	<-stopChan

	log.Info().Msg("shutting down worker")
}

func handleDelivery(d amqp.Delivery, repo *mongodb.AuditRepository) {
	var event domain.BalanceEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Error().Err(err).Msg("malformed event, dropping")
		if err := d.Nack(false, false); err != nil {
			log.Error().Err(err).Msg("nack failed")
		}
		return
	}

	doc := mongodb.AuditDocument{
		AccountID:  event.AccountID.String(),
		Seq:        event.Seq,
		OldBalance: event.OldBalance,
		NewBalance: event.NewBalance,
		Reason:     event.Reason,
		Version:    event.Version,
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.Save(saveCtx, doc); err != nil {
		log.Error().Err(err).Msg("mongo write failed, requeueing")
		if err := d.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("nack failed")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
