// Command dlq-reprocess читает DLQ витрины и повторно публикует недоставленные события заказов.
//
// По умолчанию работает в dry-run: только логирует кандидатов. С -execute
// восстанавливает исходные outbox-сообщения и отправляет их в -target-topic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/messaging/kafka"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Getenv, os.Stderr)
	stop()
	os.Exit(code)
}

func runMain(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if err := run(ctx, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "dlq replay failed: %v\n", err)
		return exitFailed
	}
	return exitOK
}

func run(ctx context.Context, cfg config) error {
	logger := log.WithField("component", "dlq-reprocess")
	logger.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"mode":         cfg.mode(),
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	deps, err := connect(cfg)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	var publisher replayPublisher
	if deps.producer != nil {
		publisher = kafka.NewOutboxPublisher(kafka.NewProducerFromSync(deps.producer, logger), cfg.targetTopic)
	}

	r := &replayer{
		cfg:       cfg,
		offsets:   deps.offsets,
		consumer:  deps.consumer,
		publisher: publisher,
		logger:    logger,
	}
	stats, err := r.run(ctx)
	logger.WithFields(log.Fields{
		"mode":     cfg.mode(),
		"scanned":  stats.scanned,
		"replayed": stats.replayed,
		"skipped":  stats.skipped,
	}).Info("dlq replay finished")
	return err
}
