package config

// Observability configures tracing. An empty TracingURL disables the
// exporter so the worker can run without a collector.
type Observability struct {
	ServiceName string `mapstructure:"service_name"`
	TracingURL  string `mapstructure:"tracing_url"`
}
