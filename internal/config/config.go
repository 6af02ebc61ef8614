// Package config loads service settings from the environment (and an optional
// config file) through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the API, the worker and the CLI.
type Config struct {
	AWSRegion        string
	EndpointOverride string

	OrdersTable      string
	CustomersTable   string
	IdempotencyTable string
	QueueURL         string
	IdempotencyTTL   time.Duration

	// Timezone renders order dates for date-fragment search.
	Timezone         *time.Location
	MetricsNamespace string

	LogLevel       string
	LogDevelopment bool

	RunLocal bool
	HTTPAddr string

	CustomerFetchConcurrency int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_endpoint_override", "")
	v.SetDefault("orders_table", "orders")
	v.SetDefault("customers_table", "customers")
	v.SetDefault("idempotency_table", "idempotency")
	v.SetDefault("orders_queue_url", "")
	v.SetDefault("idempotency_ttl", "48h")
	v.SetDefault("studio_timezone", "UTC")
	v.SetDefault("metrics_namespace", "Studio/OrderDesk")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("run_local", false)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("customer_fetch_concurrency", 8)
}

// New returns a viper instance with defaults set and environment variables
// (AWS_REGION, ORDERS_TABLE, ...) bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return FromViper(New())
}

// LoadFile reads path (yaml, json or toml) on top of the environment.
func LoadFile(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from v.
func FromViper(v *viper.Viper) (Config, error) {
	loc, err := time.LoadLocation(v.GetString("studio_timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("studio_timezone: %w", err)
	}
	ttl := v.GetDuration("idempotency_ttl")
	if ttl <= 0 {
		return Config{}, fmt.Errorf("idempotency_ttl must be positive, got %q", v.GetString("idempotency_ttl"))
	}

	return Config{
		AWSRegion:                v.GetString("aws_region"),
		EndpointOverride:         v.GetString("aws_endpoint_override"),
		OrdersTable:              v.GetString("orders_table"),
		CustomersTable:           v.GetString("customers_table"),
		IdempotencyTable:         v.GetString("idempotency_table"),
		QueueURL:                 v.GetString("orders_queue_url"),
		IdempotencyTTL:           ttl,
		Timezone:                 loc,
		MetricsNamespace:         v.GetString("metrics_namespace"),
		LogLevel:                 v.GetString("log_level"),
		LogDevelopment:           v.GetBool("log_development"),
		RunLocal:                 v.GetBool("run_local"),
		HTTPAddr:                 v.GetString("http_addr"),
		CustomerFetchConcurrency: v.GetInt("customer_fetch_concurrency"),
	}, nil
}
