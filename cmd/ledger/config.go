package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/signature"
)

const (
	defaultListenAddr     = "localhost:8000"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultSignatureAlg   = signature.AlgorithmHMACSHA256
	defaultTokenTTL       = 24 * time.Hour
	defaultWebhookTimeout = 10 * time.Second
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the ledger service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Secret shared with payment provider to sign webhooks
	// SecretKey is used if not set
	WebhookSecret string

	// Webhook signature algorithm: hmac-sha256 or sha1
	SignatureAlgorithm string

	// Access token lifetime, negative means tokens never expire
	TokenTTL time.Duration

	// Max time to apply one webhook
	WebhookTimeout time.Duration

	// Broker to publish ledger events to. Events are not published if empty.
	AMQPURL string

	// Superuser created on start if both set and user does not exist
	AdminLogin    string
	AdminPassword string

	// Origins allowed to call API from browser
	CORSOrigins []string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		SignatureAlgorithm: defaultSignatureAlg,
		TokenTTL:           defaultTokenTTL,
		WebhookTimeout:     defaultWebhookTimeout,
		Environment:        defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	var errs []error

	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				errs = append(errs, err)
				return
			}
			*o = d
		}
	}
	setList := func(o *[]string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = splitList(value)
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"SECRET_KEY":           setString(&c.SecretKey),
		"WEBHOOK_SECRET":       setString(&c.WebhookSecret),
		"SIGNATURE_ALGORITHM":  setString(&c.SignatureAlgorithm),
		"ACCESS_TOKEN_TTL":     setDuration(&c.TokenTTL),
		"WEBHOOK_TIMEOUT":      setDuration(&c.WebhookTimeout),
		"RABBITMQ_URL":         setString(&c.AMQPURL),
		"ADMIN_LOGIN":          setString(&c.AdminLogin),
		"ADMIN_PASSWORD":       setString(&c.AdminPassword),
		"CORS_ALLOWED_ORIGINS": setList(&c.CORSOrigins),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("ledger", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.WebhookSecret, "webhook-secret", "w", c.WebhookSecret, "Webhook signature secret (secret key if empty)")
	fs.StringVar(&c.SignatureAlgorithm, "signature-alg", c.SignatureAlgorithm, "Webhook signature algorithm (hmac-sha256, sha1)")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "Access token lifetime")
	fs.DurationVar(&c.WebhookTimeout, "webhook-timeout", c.WebhookTimeout, "Max time to apply webhook")
	fs.StringVar(&c.AMQPURL, "amqp", c.AMQPURL, "RabbitMQ url to publish ledger events to")
	fs.StringVar(&c.AdminLogin, "admin-login", c.AdminLogin, "Superuser to create on start")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Superuser password")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Origins allowed to call API from browser")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate required options and fill derived ones
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key is required")
	}
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is required")
	}
	if c.Environment != logger.EnvDevelopment && c.Environment != logger.EnvProduction {
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if (c.AdminLogin == "") != (c.AdminPassword == "") {
		return errors.New("admin login and password must be set together")
	}

	if c.WebhookSecret == "" {
		c.WebhookSecret = c.SecretKey
	}

	return nil
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
