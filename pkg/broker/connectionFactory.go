package broker

import (
	"context"
	"fmt"

	"github.com/zoff-tech/go-worker/pkg/config"
	"github.com/zoff-tech/go-worker/pkg/logger"
)

// NewConnection dials the broker described by cfg and returns a live
// Connection. There is no retry: an unreachable broker fails immediately.
func NewConnection(ctx context.Context, cfg *config.BrokerSettings, log *logger.Logger) (Connection, error) {
	switch cfg.Type {
	case "nats":
		return NewNatsConnection(ctx, cfg, log)
	case "rabbitmq":
		return NewRabbitMqConnection(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
