package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Env         string
	Port        string
	LogLevel    string
	CORSOrigins []string
}

type DBCfg struct{ DSN string }

type RedisCfg struct{ Addr, Password string }

type SecurityCfg struct {
	AdminToken string // guards /admin routes
}

// PaypackCfg carries the provider credentials. They only ever come from the
// environment.
type PaypackCfg struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TimeoutSec   int
	TokenSkew    time.Duration
	RefreshTTL   time.Duration
}

type PaymentCfg struct {
	MinAmount int64
}

type PollCfg struct {
	Interval    time.Duration
	MaxAttempts int
}

type Cfg struct {
	App     AppCfg
	DB      DBCfg
	Redis   RedisCfg
	Sec     SecurityCfg
	Paypack PaypackCfg
	Payment PaymentCfg
	Poll    PollCfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("PAYPACK_BASE_URL", "https://payments.paypack.rw/api")
	v.SetDefault("PAYPACK_CLIENT_ID", "")
	v.SetDefault("PAYPACK_CLIENT_SECRET", "")
	v.SetDefault("PAYPACK_TIMEOUT_SEC", 30)
	v.SetDefault("PAYPACK_TOKEN_SKEW", "30s")
	v.SetDefault("PAYPACK_REFRESH_TTL", "0s")
	v.SetDefault("PAYMENT_MIN_AMOUNT", 100)
	v.SetDefault("POLL_INTERVAL", "5s")
	v.SetDefault("POLL_MAX_ATTEMPTS", 60)
}

// Load reads .env (if present) and the process environment, exiting on
// missing required settings.
func Load() Cfg {
	_ = godotenv.Load() // a missing .env is fine

	v := viper.New()
	v.AutomaticEnv()
	cfg, err := FromViper(v)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// FromViper builds a Cfg from an already populated viper instance.
func FromViper(v *viper.Viper) (Cfg, error) {
	setDefaults(v)

	cfg := Cfg{
		App: AppCfg{
			Env:         v.GetString("APP_ENV"),
			Port:        v.GetString("APP_PORT"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB:    DBCfg{DSN: v.GetString("DB_DSN")},
		Redis: RedisCfg{Addr: v.GetString("REDIS_ADDR"), Password: v.GetString("REDIS_PASSWORD")},
		Sec:   SecurityCfg{AdminToken: strings.TrimSpace(v.GetString("ADMIN_TOKEN"))},
		Paypack: PaypackCfg{
			BaseURL:      strings.TrimSuffix(strings.TrimSpace(v.GetString("PAYPACK_BASE_URL")), "/"),
			ClientID:     strings.TrimSpace(v.GetString("PAYPACK_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(v.GetString("PAYPACK_CLIENT_SECRET")),
			TimeoutSec:   v.GetInt("PAYPACK_TIMEOUT_SEC"),
			TokenSkew:    v.GetDuration("PAYPACK_TOKEN_SKEW"),
			RefreshTTL:   v.GetDuration("PAYPACK_REFRESH_TTL"),
		},
		Payment: PaymentCfg{MinAmount: v.GetInt64("PAYMENT_MIN_AMOUNT")},
		Poll: PollCfg{
			Interval:    v.GetDuration("POLL_INTERVAL"),
			MaxAttempts: v.GetInt("POLL_MAX_ATTEMPTS"),
		},
	}

	// Fail fast on required settings
	if cfg.Paypack.ClientID == "" || cfg.Paypack.ClientSecret == "" {
		return Cfg{}, errors.New("PAYPACK_CLIENT_ID and PAYPACK_CLIENT_SECRET are required")
	}
	if cfg.Paypack.BaseURL == "" {
		return Cfg{}, errors.New("PAYPACK_BASE_URL must not be empty")
	}
	if cfg.Poll.Interval <= 0 || cfg.Poll.MaxAttempts <= 0 {
		return Cfg{}, errors.New("POLL_INTERVAL and POLL_MAX_ATTEMPTS must be positive")
	}
	if cfg.Payment.MinAmount <= 0 {
		return Cfg{}, errors.New("PAYMENT_MIN_AMOUNT must be positive")
	}
	return cfg, nil
}

func (c Cfg) IsDevelopment() bool { return c.App.Env == "development" }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
