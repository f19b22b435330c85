// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramAPIURL       = "TELEGRAM_API_URL"
	KeyMongoURI             = "MONGO_URI"
	KeyMongoDB              = "MONGO_DB"
	KeyAppEnv               = "APP_ENV"
	KeyLogLevel             = "LOG_LEVEL"
	KeyHTTPPort             = "HTTP_PORT"
	KeyYooKassaAccountID    = "YOOKASSA_ACCOUNT_ID"
	KeyYooKassaSecretKey    = "YOOKASSA_SECRET_KEY"
	KeyYooKassaAPIURL       = "YOOKASSA_API_URL"
	KeyPaymentReturnURL     = "PAYMENT_RETURN_URL"
	KeyPaymentCheckInterval = "PAYMENT_CHECK_INTERVAL"
	KeyPaymentCheckLimit    = "PAYMENT_CHECK_LIMIT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv               = EnvProduction
	DefaultLogLevel             = "info"
	DefaultHTTPPort             = 8080
	DefaultYooKassaAPIURL       = "https://api.yookassa.ru/v3"
	DefaultPaymentReturnURL     = "https://t.me"
	DefaultPaymentCheckInterval = time.Minute
	DefaultPaymentCheckLimit    = 10

	// Recommended database names by environment.
	DefaultMongoDBProd = "subscription_bot"
	DefaultMongoDBDev  = "subscription_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Secret      bool   // redacted in diagnostic output
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramAPIURL,
		Example:     "https://api.telegram.org/bot123:ABC",
		Required:    true,
		Secret:      true,
		Description: "Telegram Bot API base URL including the bot token.",
		Notes:       "The bot appends method names (getUpdates, sendMessage, ...) to this base.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Secret:      true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyYooKassaAccountID,
		Example:     "123456",
		Required:    true,
		Description: "YooKassa shop identifier used for basic auth.",
	},
	{
		Key:         KeyYooKassaSecretKey,
		Example:     "live_abcdef",
		Required:    true,
		Secret:      true,
		Description: "YooKassa secret key used for basic auth.",
	},
	{
		Key:         KeyYooKassaAPIURL,
		Example:     DefaultYooKassaAPIURL,
		Default:     DefaultYooKassaAPIURL,
		Description: "YooKassa API base URL.",
	},
	{
		Key:         KeyPaymentReturnURL,
		Example:     "https://t.me/my_subscription_bot",
		Default:     DefaultPaymentReturnURL,
		Description: "Redirect target after checkout completes.",
	},
	{
		Key:         KeyPaymentCheckInterval,
		Example:     "1m",
		Default:     DefaultPaymentCheckInterval.String(),
		Description: "Cadence of the pending-payment status sweep.",
	},
	{
		Key:         KeyPaymentCheckLimit,
		Example:     strconv.Itoa(DefaultPaymentCheckLimit),
		Default:     strconv.Itoa(DefaultPaymentCheckLimit),
		Description: "Status checks per order before it is marked failed.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port serving the webhook and health endpoints.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramAPIURL       string
	MongoURI             string
	MongoDB              string
	AppEnv               string
	LogLevel             string
	HTTPPort             int
	YooKassaAccountID    string
	YooKassaSecretKey    string
	YooKassaAPIURL       string
	PaymentReturnURL     string
	PaymentCheckInterval time.Duration
	PaymentCheckLimit    int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:               firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramAPIURL:       strings.TrimRight(strings.TrimSpace(os.Getenv(KeyTelegramAPIURL)), "/"),
		MongoURI:             strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:              strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:             firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:             DefaultHTTPPort,
		YooKassaAccountID:    strings.TrimSpace(os.Getenv(KeyYooKassaAccountID)),
		YooKassaSecretKey:    strings.TrimSpace(os.Getenv(KeyYooKassaSecretKey)),
		YooKassaAPIURL:       firstNonEmpty(strings.TrimRight(strings.TrimSpace(os.Getenv(KeyYooKassaAPIURL)), "/"), DefaultYooKassaAPIURL),
		PaymentReturnURL:     firstNonEmpty(strings.TrimSpace(os.Getenv(KeyPaymentReturnURL)), DefaultPaymentReturnURL),
		PaymentCheckInterval: DefaultPaymentCheckInterval,
		PaymentCheckLimit:    DefaultPaymentCheckLimit,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramAPIURL == "" {
		missing = append(missing, KeyTelegramAPIURL)
	}
	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}
	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}
	if cfg.YooKassaAccountID == "" {
		missing = append(missing, KeyYooKassaAccountID)
	}
	if cfg.YooKassaSecretKey == "" {
		missing = append(missing, KeyYooKassaSecretKey)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	intervalRaw := strings.TrimSpace(os.Getenv(KeyPaymentCheckInterval))
	if intervalRaw != "" {
		interval, parseErr := time.ParseDuration(intervalRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyPaymentCheckInterval, parseErr)
		}
		if interval <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyPaymentCheckInterval)
		}
		cfg.PaymentCheckInterval = interval
	}

	limitRaw := strings.TrimSpace(os.Getenv(KeyPaymentCheckLimit))
	if limitRaw != "" {
		limit, parseErr := strconv.Atoi(limitRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyPaymentCheckLimit, parseErr)
		}
		if limit <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyPaymentCheckLimit)
		}
		cfg.PaymentCheckLimit = limit
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the resolved configuration with secret values masked,
// suitable for the --config-only diagnostic output.
func FormatRedacted(cfg Config) string {
	values := map[string]string{
		KeyTelegramAPIURL:       cfg.TelegramAPIURL,
		KeyMongoURI:             cfg.MongoURI,
		KeyMongoDB:              cfg.MongoDB,
		KeyAppEnv:               cfg.AppEnv,
		KeyLogLevel:             cfg.LogLevel,
		KeyHTTPPort:             strconv.Itoa(cfg.HTTPPort),
		KeyYooKassaAccountID:    cfg.YooKassaAccountID,
		KeyYooKassaSecretKey:    cfg.YooKassaSecretKey,
		KeyYooKassaAPIURL:       cfg.YooKassaAPIURL,
		KeyPaymentReturnURL:     cfg.PaymentReturnURL,
		KeyPaymentCheckInterval: cfg.PaymentCheckInterval.String(),
		KeyPaymentCheckLimit:    strconv.Itoa(cfg.PaymentCheckLimit),
	}

	var b strings.Builder
	for _, spec := range Contract {
		value := values[spec.Key]
		if spec.Secret && value != "" {
			value = "[redacted]"
		}
		fmt.Fprintf(&b, "%s=%s\n", spec.Key, value)
	}

	return b.String()
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
