package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string   // application environment (e.g. "dev", "prod")
    Port           string   // HTTP port to listen on
    DBUser         string   // database username
    DBPass         string   // database password (optional)
    DBHost         string   // database host address
    DBPort         string   // database port number
    DBName         string   // database name
    JWTSecret      string   // secret used to sign JWTs
    AccessTTLMin   int      // access token time-to-live in minutes
    RefreshTTLDays int      // refresh token time-to-live in days
    BcryptCost     int      // bcrypt cost for password hashing
    LogDir         string   // directory for the application log files
    LogLevel       string   // minimum level written by the logger
    AutoMigrate    bool     // apply embedded migrations on startup
    CORSOrigins    []string // origins allowed to call the API
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        LogDir:         envStr("LOG_DIR", "logs"),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
        CORSOrigins:    envList("CORS_ORIGINS", "*"),
    }
}

// BookingConfig configures the reservation flow: the daily cutover at
// which every reservation ends, the human verification service and the
// limits applied to a single rebook.
type BookingConfig struct {
    Cutover            string        // "HH:MM" in UTC
    CaptchaBaseURL     string        // base URL of the verification service
    CaptchaSiteKey     string        // public key handed to the client widget
    CaptchaConfigName  string        // configuration name sent with every verify call
    CaptchaTimeout     time.Duration // timeout of one verify call
    SubmitTimeout      time.Duration // upper bound for one rebook
    ReleaseConcurrency int           // release writes in flight per rebook
    PageSize           int           // page size when listing a caller's seats
    TokenTTL           time.Duration // how long a consumed token is remembered in Redis
}

// LoadBookingConfig reads the booking settings.  The cutover and the
// verification service are required.
func LoadBookingConfig() BookingConfig {
    return BookingConfig{
        Cutover:            must("BOOKING_CUTOVER"),
        CaptchaBaseURL:     must("CAPTCHA_BASE_URL"),
        CaptchaSiteKey:     envStr("CAPTCHA_SITE_KEY", ""),
        CaptchaConfigName:  envStr("CAPTCHA_CONFIG_NAME", "reCaptcha-v2-checkbox"),
        CaptchaTimeout:     envDur("CAPTCHA_TIMEOUT", 5*time.Second),
        SubmitTimeout:      envDur("BOOKING_SUBMIT_TIMEOUT", 30*time.Second),
        ReleaseConcurrency: envInt("BOOKING_RELEASE_CONCURRENCY", 4),
        PageSize:           envInt("BOOKING_PAGE_SIZE", 100),
        TokenTTL:           envDur("BOOKING_TOKEN_TTL", 24*time.Hour),
    }
}

// AMQPConfig holds the RabbitMQ connection and queue names.  An empty URL
// disables publishing and the consumers.
type AMQPConfig struct {
    URL               string
    EventsQueue       string // booking.committed audit events
    ReleaseRetryQueue string // seat.release.retry requests
    AuditLogPath      string // file the audit consumer appends to
}

func LoadAMQPConfig() AMQPConfig {
    return AMQPConfig{
        URL:               os.Getenv("AMQP_URL"),
        EventsQueue:       envStr("AMQP_EVENTS_QUEUE", "booking_events"),
        ReleaseRetryQueue: envStr("AMQP_RELEASE_RETRY_QUEUE", "seat_release_retry"),
        AuditLogPath:      envStr("BOOKING_AUDIT_LOG", "logs/booking.log"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
