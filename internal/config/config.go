package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	SiteID string

	EnableLocalAuth bool

	AdminUser     string
	AdminPassHash string // bcrypt

	// AuthHMACSecret signs session JWTs. Empty picks a random per-process
	// secret, which invalidates tokens on restart; fine for offline runs.
	AuthHMACSecret string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Attempt-creation rate limit, per user per window.
	AttemptRateLimit  int
	AttemptRateWindow time.Duration
}

func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:      mode,
		HTTPAddr:  addr,
		PublicURL: os.Getenv("PUBLIC_URL"),
		DBDriver:  envOr("DB_DRIVER", "sqlite"),
		DBDSN:     envOr("DB_DSN", ""),
		SiteID:    envOr("SITE_ID", "local"),

		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", true),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		AuthHMACSecret:  os.Getenv("AUTH_HMAC_SECRET"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://mocks.prepstack.in"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),

		AttemptRateLimit:  envInt("ATTEMPT_RATE_LIMIT", 10),
		AttemptRateWindow: time.Duration(envInt("ATTEMPT_RATE_WINDOW_SEC", 60)) * time.Second,
	}
}
func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
