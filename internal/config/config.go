package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the environment-variable configuration for one hc2 instance
// process: the CA/registry/gateway/SDK/sandbox wiring all read from this.
type Config struct {
	AppEnv  string
	AppName string

	InstanceID  string
	InstanceURL string

	ServiceName    string
	ServiceVersion string

	AppPort     string
	MetricsPort string
	LogLevel    string

	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisMaxRetries   int
}

// Load reads Config from the environment, matching the instance/registry
// process inputs: instance URL, instance id, instance name, service name,
// version, listening port, and the durable store's URL and database.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnvOrDefault("APP_ENV", "development"),
		AppName:        getEnvOrDefault("APP_NAME", "hc2"),
		InstanceID:     os.Getenv("HC2_INSTANCE_ID"),
		InstanceURL:    os.Getenv("HC2_INSTANCE_URL"),
		ServiceName:    os.Getenv("HC2_SERVICE_NAME"),
		ServiceVersion: getEnvOrDefault("HC2_SERVICE_VERSION", "0.0.1"),
		AppPort:        getEnvOrDefault("APP_PORT", "8080"),
		MetricsPort:    getEnvOrDefault("METRICS_PORT", "9090"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		RedisHost:      getEnvOrDefault("REDIS_HOST", "redis"),
		RedisPort:      getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	cfg.RedisDB, err = getEnvOrDefaultInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisPoolSize, err = getEnvOrDefaultInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, err
	}
	cfg.RedisMinIdleConns, err = getEnvOrDefaultInt("REDIS_MIN_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	cfg.RedisMaxRetries, err = getEnvOrDefaultInt("REDIS_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	if cfg.InstanceID == "" || cfg.InstanceURL == "" || cfg.ServiceName == "" {
		return nil, fmt.Errorf("missing required environment variables: HC2_INSTANCE_ID, HC2_INSTANCE_URL, HC2_SERVICE_NAME")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
