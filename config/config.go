package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is built once at start-up and passed explicitly to every component.
type Config struct {
	Store            string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ScraperCommand string
	ScraperScript  string
	ScraperTimeout time.Duration
	SnapshotPath   string

	Cities          []string
	PropertyTypes   []string
	BaseURL         string
	PageLimit       int
	PageDelay       time.Duration
	PairDelay       time.Duration
	UserAgent       string
	BrowserFallback bool
	ChromeBin       string

	BatchSize        int
	BatchDelay       time.Duration
	BatchConcurrency int
	BatchInterval    time.Duration
	StaleAfter       time.Duration

	GeocoderProvider   string
	GeocoderAPIKey     string
	GeocoderURL        string
	GeocoderTimeout    time.Duration
	GeocoderRPS        float64
	GeocoderMaxRetries int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	GeocodeCacheTTL    time.Duration

	RunOnStart       bool
	Schedule         string
	ScheduleTimezone string

	Environment string
	LogLevel    string
	SeqURL      string
	SeqToken    string
	MetricsAddr string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Store:            getEnv("STORE", "postgres"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "realestate"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ScraperCommand: getEnv("SCRAPER_COMMAND", "python3"),
		ScraperScript:  getEnv("SCRAPER_SCRIPT", "./scripts/scraper/aruodas_scraper.py"),
		ScraperTimeout: getEnvDuration("SCRAPER_TIMEOUT", 30*time.Minute),
		SnapshotPath:   getEnv("SNAPSHOT_PATH", "./scripts/scraper/output.json"),

		Cities:          getEnvList("SCRAPE_CITIES", []string{"Vilnius", "Kaunas", "Klaipėda", "Šiauliai", "Panevėžys"}),
		PropertyTypes:   getEnvList("SCRAPE_PROPERTY_TYPES", []string{"flat", "house", "land"}),
		BaseURL:         getEnv("SCRAPE_BASE_URL", "https://www.aruodas.lt"),
		PageLimit:       getEnvInt("SCRAPE_PAGE_LIMIT", 3),
		PageDelay:       getEnvDuration("SCRAPE_PAGE_DELAY", time.Second),
		PairDelay:       getEnvDuration("SCRAPE_PAIR_DELAY", 2*time.Second),
		UserAgent:       getEnv("SCRAPE_USER_AGENT", defaultUserAgent),
		BrowserFallback: getEnvBool("BROWSER_FALLBACK", false),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		BatchSize:        getEnvInt("BATCH_SIZE", 100),
		BatchDelay:       getEnvDuration("BATCH_DELAY", 500*time.Millisecond),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 0),
		BatchInterval:    getEnvDuration("BATCH_INTERVAL", 0),
		StaleAfter:       getEnvDuration("STALE_AFTER", 7*24*time.Hour),

		GeocoderProvider:   getEnv("GEOCODER_PROVIDER", "openstreetmap"),
		GeocoderAPIKey:     getEnv("GEOCODER_API_KEY", ""),
		GeocoderURL:        getEnv("GEOCODER_URL", ""),
		GeocoderTimeout:    getEnvDuration("GEOCODER_TIMEOUT", 5*time.Second),
		GeocoderRPS:        getEnvFloat("GEOCODER_RPS", 1),
		GeocoderMaxRetries: getEnvInt("GEOCODER_MAX_RETRIES", 2),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		GeocodeCacheTTL:    getEnvDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour),

		RunOnStart:       getEnvBool("RUN_SCRAPER_ON_START", false),
		Schedule:         getEnv("SCRAPE_SCHEDULE", "0 3 * * *"),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", ""),

		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		SeqURL:      getEnv("SEQ_URL", ""),
		SeqToken:    getEnv("SEQ_TOKEN", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
