package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DevJWTSecret is the signing secret used when JWT_SECRET is unset.  It is
// meant for local development only; Load refuses it when APP_ENV=prod.
const DevJWTSecret = "dev-insecure-jwt-secret-change-me"

// Revocation backends accepted in REVOCATION_BACKEND.
const (
	BackendMySQL = "mysql"
	BackendRedis = "redis"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; Load is called once from main and the values are
// passed down explicitly.
type Config struct {
	Env  string // application environment (dev, test, prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string // HMAC secret for access tokens
	PasswordPepper string // pepper of legacy SHA-256 password digests

	AuthCookieName string // cookie consulted when no Authorization header is sent
	CookieSecure   bool   // set the Secure flag on the auth cookie

	RevocationBackend   string        // "mysql" or "redis"
	BlacklistPruneEvery time.Duration // pruning interval for the mysql backend; 0 disables

	AMQPURL       string // empty disables the auth event stream
	AuditLogDir   string // where the audit consumer appends events
	AuditConsumer bool   // run the audit consumer in-process

	LogLevel  string
	LogFormat string
}

// Load reads the environment into a Config and validates it.
func Load() (Config, error) {
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),

		DBUser: os.Getenv("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: envStr("DB_HOST", "127.0.0.1"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: os.Getenv("DB_NAME"),

		JWTSecret:      envStr("JWT_SECRET", DevJWTSecret),
		PasswordPepper: os.Getenv("PASSWORD_PEPPER"),

		AuthCookieName: envStr("AUTH_COOKIE_NAME", "auth_token"),
		CookieSecure:   envBool("AUTH_COOKIE_SECURE", false),

		RevocationBackend:   strings.ToLower(envStr("REVOCATION_BACKEND", BackendMySQL)),
		BlacklistPruneEvery: envDur("BLACKLIST_PRUNE_INTERVAL", time.Hour),

		AMQPURL:       firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
		AuditLogDir:   envStr("AUDIT_LOG_DIR", "logs"),
		AuditConsumer: envBool("AUDIT_CONSUMER_ENABLED", false),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
	}
	if cfg.Env == "prod" {
		cfg.CookieSecure = envBool("AUTH_COOKIE_SECURE", true)
	}
	return cfg, cfg.Validate()
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if c.DBUser == "" {
		errs = append(errs, errors.New("missing required env var: DB_USER"))
	}
	if c.DBName == "" {
		errs = append(errs, errors.New("missing required env var: DB_NAME"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.Env == "prod" && c.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in prod"))
	}
	if c.AuthCookieName == "" {
		errs = append(errs, errors.New("AUTH_COOKIE_NAME must not be empty"))
	}
	switch c.RevocationBackend {
	case BackendMySQL, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown REVOCATION_BACKEND %q", c.RevocationBackend))
	}
	return errors.Join(errs...)
}

// UsingDevSecret reports whether the built-in development secret is in use.
func (c Config) UsingDevSecret() bool { return c.JWTSecret == DevJWTSecret }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
