package config

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/logging"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Config holds the project config values
type Config struct {
	URL              string
	DatabaseName     string
	BaseURL          string
	Port             string
	Env              string
	JWTSecret        string
	AckTimeout       time.Duration
	RequestTimeout   time.Duration
	PinSweepSchedule string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	env := getenv("APP_ENV", "production")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              os.Getenv("DB_URI"),
		DatabaseName:     os.Getenv("DB_NAME"),
		BaseURL:          os.Getenv("BASE_URL"),
		Port:             getenv("PORT", "8080"),
		Env:              env,
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AckTimeout:       duration("ACK_TIMEOUT", 10*time.Second),
		RequestTimeout:   duration("REQUEST_TIMEOUT", 30*time.Second),
		PinSweepSchedule: getenv("PIN_SWEEP_SCHEDULE", "@every 10m"),
	}
}

func setLogger(env string) (*zap.Logger, error) {
	return logging.New(env)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		zap.S().Warnw("ignoring invalid duration", "key", key, "value", v)
		return fallback
	}
	return d
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(zap.Error(err)).Errorw(message, "status", httpStatusCode)

	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
		if kind := chat.KindOf(err); kind != chat.KindUnknown {
			resp.Response.Kind = string(kind)
		}
	}
	b, _ := json.Marshal(resp)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write(b)
}
