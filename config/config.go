package config

import (
	"errors"
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	ServerPort     string `env:"SERVER_PORT" envDefault:"8080"`
	ServerHost     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName    string `env:"SERVICE_NAME" envDefault:"trafficwatch"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`

	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"trafficwatch"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"tw"`

	// Geocoding and live-traffic travel time
	GoogleMapsAPIKey string `env:"GOOGLE_MAPS_API_KEY"`

	// SMS delivery
	SMSProvider       string `env:"SMS_PROVIDER" envDefault:"twilio"` // twilio, mock
	TwilioAccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`

	// Ride-hailing provider
	OlaBaseURL     string `env:"OLA_BASE_URL" envDefault:"https://devapi.olacabs.com"`
	OlaAppToken    string `env:"OLA_APP_TOKEN"`
	OlaClientID    string `env:"OLA_CLIENT_ID"`
	OlaRedirectURI string `env:"OLA_REDIRECT_URI"`
	RideCategory   string `env:"RIDE_CATEGORY" envDefault:"mini"`

	// Scheduler
	SweepCronSpec        string `env:"SWEEP_CRON_SPEC" envDefault:"*/10 * * * *"`
	SweepConcurrency     int    `env:"SWEEP_CONCURRENCY" envDefault:"4"`
	ExternalCallTimeout  int    `env:"EXTERNAL_CALL_TIMEOUT_SECONDS" envDefault:"8"`
	BookingPollAttempts  int    `env:"BOOKING_POLL_ATTEMPTS" envDefault:"30"`
	BookingPollInterval  int    `env:"BOOKING_POLL_INTERVAL_SECONDS" envDefault:"2"`
	MinFinalThresholdMin int    `env:"MIN_FINAL_THRESHOLD_MINUTES" envDefault:"5"`
	AlertClaimTTLSeconds int    `env:"ALERT_CLAIM_TTL_SECONDS" envDefault:"120"`

	// Ride OAuth tokens are parked in the session until the alert exists
	SessionSecret string `env:"SESSION_SECRET"`

	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRatio    float64 `env:"TRACING_SAMPLER" envDefault:"0.1"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"`
}

func init() {

	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate checks required settings and warns about optional ones. Called
// explicitly by the server entrypoint, not from init, so test binaries can
// link this package without a full environment.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}

	if c.GoogleMapsAPIKey == "" {
		log.Printf("WARN: GOOGLE_MAPS_API_KEY is not set, geocoding and travel time lookups will not work")
	}

	if c.SMSProvider == "twilio" {
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
			log.Printf("WARN: Twilio credentials are not set, SMS delivery will not work")
		}
		if c.TwilioPhoneNumber == "" {
			log.Printf("WARN: TWILIO_PHONE_NUMBER is not set, SMS delivery will not work")
		}
	}

	if c.OlaAppToken == "" {
		log.Printf("WARN: OLA_APP_TOKEN is not set, auto-booking will not work")
	}

	return nil
}

// MustValidate aborts the process on an invalid configuration.
func MustValidate() {
	if err := Cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
