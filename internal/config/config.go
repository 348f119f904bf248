package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del servicio. Las credenciales de Apple
// (APPLE_TEAM_ID, APPLE_KEY_ID, APPLE_PRIVATE_KEY[_PATH]) NO viven acá:
// el resolver las lee del entorno en cada resolución.
type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | prod
		Env string `yaml:"app_env"`
		// debug | info | warn | error
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// Cache respalda el rate limiter: "memory" (in-process) o "redis".
	Cache struct {
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`       // global
		MaxRequests int    `yaml:"max_requests"` // global

		// Límite específico para el endpoint de refresh (firma una clave
		// ECDSA por request, conviene mantenerlo bajo).
		Refresh struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"refresh"`
	} `yaml:"rate"`

	Security struct {
		// Hash argon2id (formato PHC) de la clave de operador que protege
		// POST /v1/token/refresh. Vacío = sin protección (solo dev).
		RefreshKeyHash string `yaml:"refresh_key_hash"`
	} `yaml:"security"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "musekit"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	// Endpoint-specific rate limit defaults
	if c.Rate.Refresh.Limit == 0 {
		c.Rate.Refresh.Limit = 5
	}
	if c.Rate.Refresh.Window == "" {
		c.Rate.Refresh.Window = "10m"
	}

	// validate string durations
	if c.Cache.Memory.DefaultTTL != "" {
		if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
			return nil, err
		}
	}
	if c.Rate.Window != "" {
		if _, err := time.ParseDuration(c.Rate.Window); err != nil {
			return nil, err
		}
	}
	if c.Rate.Refresh.Window != "" {
		if _, err := time.ParseDuration(c.Rate.Refresh.Window); err != nil {
			return nil, err
		}
	}

	// Overrides por env
	c.applyEnvOverrides()

	// Validation
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// RateWindow retorna la ventana global como duración (ya validada en Load).
func (c *Config) RateWindow() time.Duration {
	d, err := time.ParseDuration(c.Rate.Window)
	if err != nil {
		return time.Minute
	}
	return d
}

// RefreshWindow retorna la ventana del endpoint de refresh como duración.
func (c *Config) RefreshWindow() time.Duration {
	d, err := time.ParseDuration(c.Rate.Refresh.Window)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// MemoryDefaultTTL retorna el TTL por defecto del cache en memoria.
func (c *Config) MemoryDefaultTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvInt("RATE_REFRESH_LIMIT"); ok {
		c.Rate.Refresh.Limit = v
	}
	if v, ok := getEnvStr("RATE_REFRESH_WINDOW"); ok {
		c.Rate.Refresh.Window = v
	}

	// SECURITY
	if v, ok := getEnvStr("REFRESH_KEY_HASH"); ok {
		c.Security.RefreshKeyHash = strings.TrimSpace(v)
	}
}

// Validate chequea valores críticos que no se pueden defaultear.
func (c *Config) Validate() error {
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind inválido %q (memory|redis)", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.kind=redis requiere cache.redis.addr")
	}
	return nil
}
