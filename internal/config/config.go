// README: Config loader with env defaults for HTTP, stores, brokers and policy knobs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP struct {
		Addr string
	}
	Store struct {
		// Backend selects the order store: "firestore" or "memory".
		Backend            string
		OrdersCollection   string
		ProfilesCollection string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
		DatabaseURL     string
	}
	Redis struct {
		Addr string
	}
	Journal struct {
		DSN string
	}
	Kafka struct {
		Brokers []string
	}
	Maps struct {
		APIKey string
	}
	AutoAccept struct {
		GraceDelay time.Duration
	}
	StoreTimeout time.Duration
}

func Load() (Config, error) {
	// .env is a local-dev convenience; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("YETU_HTTP_ADDR", ":8080")
	cfg.Store.Backend = envOrDefault("YETU_STORE_BACKEND", "memory")
	cfg.Store.OrdersCollection = envOrDefault("YETU_ORDERS_COLLECTION", "orders")
	cfg.Store.ProfilesCollection = envOrDefault("YETU_RESTAURANTS_COLLECTION", "restaurants")
	cfg.Firebase.ProjectID = os.Getenv("YETU_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	cfg.Firebase.DatabaseURL = os.Getenv("YETU_FIREBASE_DATABASE_URL")
	cfg.Redis.Addr = os.Getenv("YETU_REDIS_ADDR")
	cfg.Journal.DSN = os.Getenv("YETU_JOURNAL_DSN")
	cfg.Kafka.Brokers = splitCSV(os.Getenv("YETU_KAFKA_BROKERS"))
	cfg.Maps.APIKey = os.Getenv("YETU_MAPS_API_KEY")
	cfg.AutoAccept.GraceDelay = time.Duration(envOrDefaultInt("YETU_AUTOACCEPT_GRACE", 10)) * time.Second
	cfg.StoreTimeout = time.Duration(envOrDefaultInt("YETU_STORE_TIMEOUT", 5)) * time.Second
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
