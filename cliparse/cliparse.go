package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/assocvote/models"
)

type SMSConfig struct {
	APIURL    string
	APIKey    string
	Sender    string
	PatternID string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TelegramConfig struct {
	BotToken    string
	AlertChatID int64
}

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	PublicBaseURL string
	LogLevel      slog.Level

	OperatorsFile string
	Operators     []models.Operator

	SendEmail bool
	SendSMS   bool
	SMS       SMSConfig
	SMTP      SMTPConfig
	Telegram  TelegramConfig

	// Voting window: when ForceTime is set, registrations and ballots are
	// refused from NoVoteStartHour until NoVoteEndHour
	ForceTime       bool
	NoVoteStartHour int
	NoVoteEndHour   int

	FreezeHour         int
	Location           *time.Location
	OTPValidity        time.Duration
	RateLimitPerMinute int
	// TrustProxy honors X-Forwarded-For when keying clients
	TrustProxy bool
}

const (
	DefaultPort        = 3318
	DefaultSMSAPIURL   = "https://api2.ippanel.com"
	DefaultOTPValidity = 2 * time.Hour
)

// ParseFlags validates flags and falls back to environment variables.
// Flags that were set explicitly always win over the environment.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var timezone, logLevel, otpValidity string

	fs := flag.NewFlagSet("assocvote", flag.ContinueOnError)

	// Network and storage
	fs.IntVar(&cfg.Port, "p", DefaultPort, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL (postgres URL or sqlite file)")
	fs.StringVar(&cfg.DatabaseType, "t", "sqlite", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.PublicBaseURL, "base-url", "http://localhost:3318", "Public base URL used in voting links")
	fs.StringVar(&cfg.OperatorsFile, "operators", "", "Operators YAML file")
	fs.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Notification toggles
	fs.BoolVar(&cfg.SendEmail, "send-email", false, "Send OTPs by email")
	fs.BoolVar(&cfg.SendSMS, "send-sms", false, "Send OTPs by SMS")

	// Voting policy
	fs.BoolVar(&cfg.ForceTime, "force-time", false, "Enforce the closed voting window")
	fs.IntVar(&cfg.NoVoteStartHour, "novote-start", 22, "Hour the closed window starts")
	fs.IntVar(&cfg.NoVoteEndHour, "novote-end", 6, "Hour the closed window ends")
	fs.IntVar(&cfg.FreezeHour, "freeze-hour", 13, "Daily hour after which public tallies stop counting")
	fs.StringVar(&timezone, "tz", "UTC", "Time zone for voting window and freeze hour")
	fs.StringVar(&otpValidity, "otp-validity", DefaultOTPValidity.String(), "OTP validity window")
	fs.IntVar(&cfg.RateLimitPerMinute, "rate-limit", 90, "Requests per minute per client")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For from a reverse proxy")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var err error
	if !set["p"] {
		if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
			return Config{}, err
		}
	}
	if !set["d"] {
		cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	}
	if !set["t"] {
		cfg.DatabaseType = envString("DATABASE_TYPE", cfg.DatabaseType)
	}
	if !set["base-url"] {
		cfg.PublicBaseURL = envString("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	}
	if !set["operators"] {
		cfg.OperatorsFile = envString("OPERATORS_FILE", cfg.OperatorsFile)
	}
	if !set["log-level"] {
		logLevel = envString("LOG_LEVEL", logLevel)
	}
	if !set["send-email"] {
		if cfg.SendEmail, err = envBool("SEND_EMAIL", cfg.SendEmail); err != nil {
			return Config{}, err
		}
	}
	if !set["send-sms"] {
		if cfg.SendSMS, err = envBool("SEND_SMS", cfg.SendSMS); err != nil {
			return Config{}, err
		}
	}
	if !set["force-time"] {
		if cfg.ForceTime, err = envBool("FORCE_TIME", cfg.ForceTime); err != nil {
			return Config{}, err
		}
	}
	if !set["novote-start"] {
		if cfg.NoVoteStartHour, err = envInt("NOVOTE_START_HOUR", cfg.NoVoteStartHour); err != nil {
			return Config{}, err
		}
	}
	if !set["novote-end"] {
		if cfg.NoVoteEndHour, err = envInt("NOVOTE_END_HOUR", cfg.NoVoteEndHour); err != nil {
			return Config{}, err
		}
	}
	if !set["freeze-hour"] {
		if cfg.FreezeHour, err = envInt("FREEZE_HOUR", cfg.FreezeHour); err != nil {
			return Config{}, err
		}
	}
	if !set["tz"] {
		timezone = envString("TIMEZONE", timezone)
	}
	if !set["otp-validity"] {
		otpValidity = envString("OTP_VALIDITY", otpValidity)
	}
	if !set["rate-limit"] {
		if cfg.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute); err != nil {
			return Config{}, err
		}
	}

	if !set["trust-proxy"] {
		if cfg.TrustProxy, err = envBool("TRUST_PROXY", cfg.TrustProxy); err != nil {
			return Config{}, err
		}
	}

	// Provider settings are secrets, env only
	cfg.SMS = SMSConfig{
		APIURL:    envString("SMS_API_URL", DefaultSMSAPIURL),
		APIKey:    os.Getenv("SMS_APIKEY"),
		Sender:    os.Getenv("SMS_SENDER"),
		PatternID: os.Getenv("SMS_PATTERN_ID"),
	}
	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("EMAIL_FROM"),
	}
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chat := os.Getenv("TELEGRAM_ALERT_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return Config{}, errors.New("invalid TELEGRAM_ALERT_CHAT_ID env variable")
		}
		cfg.Telegram.AlertChatID = id
	}

	// Validation
	switch cfg.DatabaseType {
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "assocvote.db"
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
	default:
		return Config{}, fmt.Errorf("unsupported database type %q (sqlite or postgres)", cfg.DatabaseType)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	for name, h := range map[string]int{"novote-start": cfg.NoVoteStartHour, "novote-end": cfg.NoVoteEndHour, "freeze-hour": cfg.FreezeHour} {
		if h < 0 || h > 23 {
			return Config{}, fmt.Errorf("%s must be between 0 and 23, got %d", name, h)
		}
	}
	if cfg.RateLimitPerMinute <= 0 {
		return Config{}, errors.New("rate limit must be positive")
	}

	if cfg.Location, err = time.LoadLocation(timezone); err != nil {
		return Config{}, fmt.Errorf("invalid time zone %q: %w", timezone, err)
	}
	if cfg.OTPValidity, err = time.ParseDuration(otpValidity); err != nil || cfg.OTPValidity <= 0 {
		return Config{}, fmt.Errorf("invalid OTP validity %q", otpValidity)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return Config{}, fmt.Errorf("invalid log level %q", logLevel)
	}

	if cfg.SendSMS && (cfg.SMS.APIKey == "" || cfg.SMS.PatternID == "") {
		return Config{}, errors.New("SMS_APIKEY and SMS_PATTERN_ID required when SEND_SMS is enabled")
	}
	if cfg.SendEmail && (cfg.SMTP.Host == "" || cfg.SMTP.From == "") {
		return Config{}, errors.New("SMTP_HOST and EMAIL_FROM required when SEND_EMAIL is enabled")
	}

	if cfg.OperatorsFile != "" {
		ops, err := LoadOperators(cfg.OperatorsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Operators = ops
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable", key)
	}
	return b, nil
}
