// Package main (in worker-subfolder) provides launch of the thumbnail-generating worker
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/queue"
	"github.com/OParshikov/ImagePipeline/internal/repository"
	"github.com/OParshikov/ImagePipeline/internal/service"
	"github.com/OParshikov/ImagePipeline/internal/storage"
	"github.com/OParshikov/ImagePipeline/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// подключиться к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подключиться к хранилищу
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresImageRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	queue.WaitKafkaReady(broker)

	topic := appConfig.GetString("KAFKA_TOPIC")
	dlqTopic := appConfig.GetString("KAFKA_DLQ_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	queue.InitKafkaTopics(context.Background(), broker, 10*time.Second, topic, dlqTopic)

	// продюсеры: передоставка тасок в основной топик и dead-letter для исчерпавших лимит
	pub := wbfkafka.NewProducer([]string{broker}, topic)
	dlq := wbfkafka.NewProducer([]string{broker}, dlqTopic)

	// создаем экземпляр сервиса
	svc := service.NewImageService(appConfig, repo, pub, strg)

	// подключиться к кафке как читатель
	msgQueue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons.StartConsuming(ctx, msgQueue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	maxAttempts := appConfig.GetInt("TASK_MAX_ATTEMPTS")
	go worker.NewWorkerInstance(strg, svc, msgQueue, cons, pub, dlq, maxAttempts).StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, pub, dlq, dbConn)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, pub, dlq *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connections:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	if err := dlq.Close(); err != nil {
		log.Println("Failed to close Kafka-DLQ-producer:", err)
	}
	log.Println("Kafka connections closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
