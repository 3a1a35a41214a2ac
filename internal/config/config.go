package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for BriefHub, loaded from environment
// variables (optionally via a .env file in the working directory).
type Config struct {
	ServerPort string `mapstructure:"PORT"`

	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBName     string `mapstructure:"DB_NAME"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	AppURL               string `mapstructure:"APP_URL"`
	AdminBootstrapSecret string `mapstructure:"ADMIN_BOOTSTRAP_SECRET"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	StripeAPIBaseURL   string `mapstructure:"STRIPE_API_BASE_URL"`
	StripeSecretKey    string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookKey   string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `mapstructure:"CHECKOUT_CANCEL_URL"`

	MailProvider string `mapstructure:"MAIL_PROVIDER"`
	MailReplyTo  string `mapstructure:"MAIL_REPLY_TO"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	PlunkAPIKey string `mapstructure:"PLUNK_API_KEY"`
	PlunkFrom   string `mapstructure:"PLUNK_FROM"`
	PlunkAPIURL string `mapstructure:"PLUNK_API_URL"`
}

// DatabaseURL assembles the Postgres DSN from the DB_* parts.
func (c Config) DatabaseURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName
}

// Load reads configuration from the environment, with an optional .env file
// at the given path. Missing optional values fall back to defaults.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "briefhub")
	viper.SetDefault("APP_URL", "http://localhost:3000")
	viper.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	viper.SetDefault("PLUNK_API_URL", "https://api.useplunk.com/v1/send")
	viper.SetDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/wallet?status=success")
	viper.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/wallet?status=cancelled")

	keys := []string{
		"PORT", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
		"JWT_SECRET", "APP_URL", "ADMIN_BOOTSTRAP_SECRET", "REDIS_ADDR",
		"STRIPE_API_BASE_URL", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
		"CHECKOUT_SUCCESS_URL", "CHECKOUT_CANCEL_URL",
		"MAIL_PROVIDER", "MAIL_REPLY_TO",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
		"PLUNK_API_KEY", "PLUNK_FROM", "PLUNK_API_URL",
	}
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	// The .env file is optional; a missing file is not an error.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
