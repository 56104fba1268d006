package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/layout"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// DataConfig describes where the dataset comes from
type DataConfig struct {
	// Source is a file path or a file://, http(s)://, postgres:// or redis:// URI
	Source      string
	Table       string
	OrderBy     string
	LoadTimeout time.Duration

	// Remote sources can be cached in Redis between restarts
	CacheEnabled bool
	CacheTTL     time.Duration
}

// RedisConfig holds Redis connection configuration for the dataset cache
type RedisConfig struct {
	URL      string
	Password string
}

// TransitionConfig controls chart animation
type TransitionConfig struct {
	Duration time.Duration
}

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Redis      RedisConfig
	Layout     layout.Layout
	Transition TransitionConfig
}

// LoadConfig loads configuration from environment variables, after an
// optional .env file in the working directory
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		fmt.Println("✓ Loaded .env")
	}

	return &Config{
		Server: ServerConfig{
			Addr:           getEnv("SERVER_ADDR", ":8080"),
			CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			Source:       getEnv("DATA_SOURCE", "data/cars.json"),
			Table:        getEnv("DATA_TABLE", "cars"),
			OrderBy:      getEnv("DATA_ORDER_BY", "id"),
			LoadTimeout:  getEnvDuration("DATA_LOAD_TIMEOUT", 30*time.Second),
			CacheEnabled: getEnvBool("DATA_CACHE", false),
			CacheTTL:     getEnvDuration("DATA_CACHE_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Layout: loadLayout(),
		Transition: TransitionConfig{
			Duration: getEnvDuration("TRANSITION_DURATION", 500*time.Millisecond),
		},
	}
}

// loadLayout starts from the stock sizes and applies overrides
func loadLayout() layout.Layout {
	l := layout.Default()
	l.Pie = loadDimensions("PIE", l.Pie)
	l.Bar = loadDimensions("BAR", l.Bar)
	l.Line = loadDimensions("LINE", l.Line)
	return l
}

func loadDimensions(prefix string, d layout.Dimensions) layout.Dimensions {
	d.Width = getEnvFloat(prefix+"_WIDTH", d.Width)
	d.Height = getEnvFloat(prefix+"_HEIGHT", d.Height)
	d.Margin = getEnvMargin(prefix+"_MARGIN", d.Margin)
	return d
}

// Validate reports configuration that cannot work
func (c *Config) Validate() error {
	if c.Data.Source == "" {
		return fmt.Errorf("DATA_SOURCE is required")
	}
	if c.Data.LoadTimeout <= 0 {
		return fmt.Errorf("DATA_LOAD_TIMEOUT must be positive")
	}
	if c.Transition.Duration < 0 {
		return fmt.Errorf("TRANSITION_DURATION must not be negative")
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("750ms") or whole milliseconds ("750")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if ms := getEnvInt(key, -1); ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvMargin parses "top,right,bottom,left"
func getEnvMargin(key string, defaultValue layout.Margin) layout.Margin {
	parts := getEnvList(key, nil)
	if len(parts) != 4 {
		return defaultValue
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return defaultValue
		}
		v[i] = f
	}
	return layout.Margin{Top: v[0], Right: v[1], Bottom: v[2], Left: v[3]}
}
