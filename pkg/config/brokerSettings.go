package config

import "time"

// BrokerSettings holds configuration for connecting to a message broker.
type BrokerSettings struct {
	Type     string `mapstructure:"type" validate:"required,oneof=nats rabbitmq"`
	URL      string `mapstructure:"url" validate:"required"`
	Exchange string `mapstructure:"exchange"` // Only used by the RabbitMQ backend
	// DrainGrace bounds how long Close waits for in-flight handlers to finish.
	DrainGrace time.Duration `mapstructure:"drain_grace"`
}
