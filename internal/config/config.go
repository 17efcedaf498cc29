package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string
	Env     string
	Host    string
	Port    int

	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	JWTSecret          string
	AccessTokenMinutes int
	RememberMeDays     int
	EncryptKey         string
	EncryptLegacyKeys  []string

	CORSOrigins []string
	Debug       bool

	FirstContactLimit int
	PollRatePerMinute int
	PollBurst         int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "Clubhouse API")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8000)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "clubhouse")
	v.SetDefault("SQLITE_PATH", "file:clubhouse.db")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24)
	v.SetDefault("REMEMBER_ME_TOKEN_EXPIRE_DAYS", 30)
	v.SetDefault("DEBUG", true)
	v.SetDefault("FIRST_CONTACT_LIMIT", 3)
	v.SetDefault("POLL_RATE_PER_MINUTE", 120)
	v.SetDefault("POLL_BURST", 10)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("POSTGRES_USER"), v.GetString("POSTGRES_PASSWORD")),
		Host:     fmt.Sprintf("%s:%s", v.GetString("POSTGRES_HOST"), v.GetString("POSTGRES_PORT")),
		Path:     v.GetString("POSTGRES_DB"),
		RawQuery: "sslmode=disable",
	}

	cfg := &Config{
		AppName: v.GetString("APP_NAME"),
		Env:     v.GetString("APP_ENV"),
		Host:    v.GetString("HTTP_HOST"),
		Port:    v.GetInt("HTTP_PORT"),

		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL: u.String(),
		SQLitePath:  v.GetString("SQLITE_PATH"),
		RedisURL:    v.GetString("REDIS_URL"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		AccessTokenMinutes: v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES"),
		RememberMeDays:     v.GetInt("REMEMBER_ME_TOKEN_EXPIRE_DAYS"),
		EncryptKey:         v.GetString("ENCRYPTION_KEY"),
		EncryptLegacyKeys:  splitList(v.GetString("ENCRYPTION_LEGACY_KEYS")),

		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		Debug:       v.GetBool("DEBUG"),

		FirstContactLimit: v.GetInt("FIRST_CONTACT_LIMIT"),
		PollRatePerMinute: v.GetInt("POLL_RATE_PER_MINUTE"),
		PollBurst:         v.GetInt("POLL_BURST"),
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EncryptKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.FirstContactLimit < 1 {
		return fmt.Errorf("FIRST_CONTACT_LIMIT must be positive")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.Debug || c.Env == "development"
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
