package metrics

// Config defines the metrics server settings.
type Config struct {
	// Address the /metrics endpoint listens on, e.g. ":9090".
	Address string `yaml:"address" env:"METRICS_ADDRESS"`

	// ServiceName is attached to every metric as the constant "service" label.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// Namespace prefixes every metric name. Defaults to "vecmigrate".
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE"`

	// EnableDefaultCollectors registers the Go runtime, process and build info collectors.
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" env:"METRICS_ENABLE_DEFAULT_COLLECTORS"`
}
