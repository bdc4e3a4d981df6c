package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultCheckoutURL is the hosted Razorpay checkout script.
const DefaultCheckoutURL = "https://checkout.razorpay.com/v1/checkout.js"

// ModelOption is a selectable solve model: what the user sees and what the backend receives.
type ModelOption struct {
	Label string
	Value string
}

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	APIURL        string
	DatabaseURL   string
	PreviewDir    string
	SessionSecret string
	SessionIssuer string
	SessionTTL    time.Duration
	SecureCookies bool
	CORSOrigins   []string
	VisitorIdle   time.Duration

	GoogleClientID     string
	GoogleVerifyTokens bool
	CheckoutURL        string
	SupportEmail       string

	Models       []ModelOption
	RequireModel bool

	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:               fallback(os.Getenv("PORT"), "8080"),
		APIURL:             strings.TrimRight(fallback(os.Getenv("API_URL"), "http://localhost:5001"), "/"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PreviewDir:         strings.TrimSpace(os.Getenv("PREVIEW_DIR")),
		SessionSecret:      strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionIssuer:      fallback(os.Getenv("SESSION_ISSUER"), "code-turtle-web"),
		SecureCookies:      parseBool(os.Getenv("SECURE_COOKIES"), false),
		CORSOrigins:        parseCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleVerifyTokens: parseBool(os.Getenv("GOOGLE_VERIFY_TOKENS"), false),
		SupportEmail:       strings.TrimSpace(os.Getenv("SUPPORT_EMAIL")),
		RequireModel:       parseBool(os.Getenv("SOLVE_REQUIRE_MODEL"), false),
		LogLevel:           fallback(os.Getenv("LOG_LEVEL"), "info"),
		LogPretty:          parseBool(os.Getenv("LOG_PRETTY"), false),
	}

	// An explicitly empty RAZORPAY_CHECKOUT_URL disables checkout.
	if v, ok := os.LookupEnv("RAZORPAY_CHECKOUT_URL"); ok {
		cfg.CheckoutURL = strings.TrimSpace(v)
	} else {
		cfg.CheckoutURL = DefaultCheckoutURL
	}

	minutes := fallback(os.Getenv("SESSION_TTL_MINUTES"), "1440")
	if ttlMinutes, err := strconv.Atoi(minutes); err == nil && ttlMinutes > 0 {
		cfg.SessionTTL = time.Duration(ttlMinutes) * time.Minute
	} else {
		cfg.SessionTTL = 24 * time.Hour
	}

	idle := fallback(os.Getenv("VISITOR_IDLE_MINUTES"), "120")
	if idleMinutes, err := strconv.Atoi(idle); err == nil && idleMinutes >= 0 {
		cfg.VisitorIdle = time.Duration(idleMinutes) * time.Minute
	} else {
		cfg.VisitorIdle = 2 * time.Hour
	}

	models, err := parseModels(os.Getenv("SOLVE_MODELS"))
	if err != nil {
		return Config{}, err
	}
	cfg.Models = models

	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}
	if cfg.RequireModel && len(cfg.Models) == 0 {
		return Config{}, errors.New("SOLVE_REQUIRE_MODEL needs at least one entry in SOLVE_MODELS")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseBool(value string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return b
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseModels reads "label=value" pairs. A bare entry uses the value as its label.
func parseModels(input string) ([]ModelOption, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	var out []ModelOption
	for _, entry := range strings.Split(input, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		label, value, found := strings.Cut(entry, "=")
		if !found {
			value = label
		}
		label, value = strings.TrimSpace(label), strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("SOLVE_MODELS entry %q has no value", entry)
		}
		if label == "" {
			label = value
		}
		out = append(out, ModelOption{Label: label, Value: value})
	}
	return out, nil
}
