package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/zoff-tech/go-worker/pkg/broker"
	"github.com/zoff-tech/go-worker/pkg/config"
	"github.com/zoff-tech/go-worker/pkg/logger"
)

// loadgen publishes a stream of messages to one subject and reports the
// publish rate, or exercises the request/reply path with -request.
func main() {
	var (
		configPath = flag.String("config", "./cmd/worker", "directory holding worker.yaml")
		subject    = flag.String("subject", "foo.get", "subject to publish to")
		count      = flag.Int("count", 10000, "number of messages to send")
		request    = flag.Bool("request", false, "use request/reply instead of publish")
		timeout    = flag.Duration("timeout", 2*time.Second, "request timeout")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logg.Sync()

	ctx := context.Background()
	conn, err := broker.NewConnection(ctx, &cfg.Broker, logg)
	if err != nil {
		logg.Fatal("failed to connect to broker", logger.Error(err))
	}
	defer conn.Close()

	payload := []byte(`{"data":"hello"}`)

	if *request {
		reply, err := conn.Request(ctx, *subject, payload, *timeout)
		if err != nil {
			logg.Fatal("request failed", logger.Error(err))
		}
		logg.Info("got reply", logger.String("reply", string(reply)))
		return
	}

	now := time.Now()
	for i := 0; i < *count; i++ {
		if err := conn.Publish(ctx, *subject, payload); err != nil {
			logg.Fatal("publish failed", logger.Error(err))
		}
		if i%1000 == 0 && i > 0 {
			elapsed := time.Since(now)
			logg.Info("publishing",
				logger.Int("sent", i),
				logger.String("rate", fmt.Sprintf("%.3f rps", 1000/elapsed.Seconds())))
			now = time.Now()
		}
	}
	logg.Info("done", logger.Int("sent", *count))
}
