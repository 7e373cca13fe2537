// Package config loads application settings from .env and the environment.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig
	Mongo   MongoConfig
	JWT     JWTConfig
	Cookie  CookieConfig
	Log     LogConfig
	Redis   RedisConfig
	Storage StorageConfig
	Twilio  TwilioConfig
	Notify  NotifyConfig
	Email   EmailConfig
	ML      MLConfig
	CORS    CORSConfig
}

type AppConfig struct {
	Env     string
	Port    string
	TempDir string
}

type MongoConfig struct {
	URL      string
	Database string
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// CookieConfig controls the auth cookie set on login
type CookieConfig struct {
	Secure bool
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig is optional; an empty Addr selects the in-memory token blacklist
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig describes the S3-compatible bucket used for images.
// An empty Bucket selects the stub uploader.
type StorageConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	WhatsAppNumber string
}

type NotifyConfig struct {
	CountryCode string
	Workers     int
	QueueSize   int
	Timeout     time.Duration
}

// EmailConfig selects the mail backend: "postmark", "sendgrid" or "" (disabled)
type EmailConfig struct {
	Provider       string
	Sender         string
	PostmarkToken  string
	SendGridAPIKey string
	ResetTokenTTL  time.Duration
}

type MLConfig struct {
	PredictURL string
	Timeout    time.Duration
}

type CORSConfig struct {
	FrontendOrigin string
}

// Load reads .env (if present) and then the environment.
// Priority: process environment, .env file, built-in defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:     v.GetString("app.env"),
			Port:    v.GetString("port"),
			TempDir: v.GetString("temp.dir"),
		},
		Mongo: MongoConfig{
			URL:      v.GetString("mongo.url"),
			Database: v.GetString("mongo.db"),
			Timeout:  v.GetDuration("mongo.timeout"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Cookie: CookieConfig{
			Secure: v.GetString("app.env") == "production",
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("s3.endpoint"),
			Region:        v.GetString("s3.region"),
			Bucket:        v.GetString("s3.bucket"),
			AccessKey:     v.GetString("s3.access.key"),
			SecretKey:     v.GetString("s3.secret.key"),
			UsePathStyle:  v.GetBool("s3.path.style"),
			PublicBaseURL: v.GetString("s3.public.url"),
		},
		Twilio: TwilioConfig{
			AccountSID:     v.GetString("twilio.sid"),
			AuthToken:      v.GetString("twilio.auth"),
			WhatsAppNumber: v.GetString("twilio.whatsapp.number"),
		},
		Notify: NotifyConfig{
			CountryCode: v.GetString("notify.country.code"),
			Workers:     v.GetInt("notify.workers"),
			QueueSize:   v.GetInt("notify.queue.size"),
			Timeout:     v.GetDuration("notify.timeout"),
		},
		Email: EmailConfig{
			Provider:       strings.ToLower(v.GetString("email.provider")),
			Sender:         v.GetString("email.sender"),
			PostmarkToken:  v.GetString("postmark.api.token"),
			SendGridAPIKey: v.GetString("sendgrid.api.key"),
			ResetTokenTTL:  v.GetDuration("reset.token.ttl"),
		},
		ML: MLConfig{
			PredictURL: v.GetString("ml.predict.url"),
			Timeout:    v.GetDuration("ml.timeout"),
		},
		CORS: CORSConfig{
			FrontendOrigin: v.GetString("frontend.origin"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("port", "4000")
	v.SetDefault("temp.dir", "temp")
	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "plantify")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("redis.db", 0)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.path.style", true)
	v.SetDefault("notify.country.code", "91")
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue.size", 256)
	v.SetDefault("notify.timeout", 15*time.Second)
	v.SetDefault("reset.token.ttl", 10*time.Minute)
	v.SetDefault("ml.predict.url", "http://localhost:8000/predict")
	v.SetDefault("ml.timeout", 60*time.Second)
	v.SetDefault("frontend.origin", "http://localhost:5173")
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.App.Env == "production" && len(c.JWT.Secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	if c.Mongo.URL == "" {
		return errors.New("MONGO_URL is required")
	}
	switch c.Email.Provider {
	case "":
	case "postmark":
		if c.Email.PostmarkToken == "" {
			return errors.New("POSTMARK_API_TOKEN is required for the postmark email provider")
		}
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return errors.New("SENDGRID_API_KEY is required for the sendgrid email provider")
		}
	default:
		return errors.New("EMAIL_PROVIDER must be postmark or sendgrid")
	}
	if c.Notify.Workers <= 0 {
		c.Notify.Workers = 1
	}
	return nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
