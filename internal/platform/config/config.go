package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultInvitationTTL is how long an invitation stays redeemable.
var DefaultInvitationTTL = 24 * time.Hour

// Server captures dev server configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    slog.Level
	// PublicBaseURL is the externally reachable origin of this server; short
	// URLs and issuer metadata endpoints are built from it.
	PublicBaseURL string
	// IssuerID is the credential_issuer advertised in offers and metadata.
	IssuerID string
	// DemoOfferFallback makes the credential-offer endpoint synthesize a demo
	// invitation for unknown IDs instead of answering 404.
	DemoOfferFallback bool
	AllowedOrigin     string
	// IssuerKeySeed is a hex ed25519 seed for the server's did:key. Empty
	// means a fresh key per process.
	IssuerKeySeed string
	Redis         RedisConfig
}

// RedisConfig configures the optional Redis backend for invitations and short URLs.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client captures configuration for the vcctl client flows.
type Client struct {
	// ServerURL is the dev server used for shortening and invitation mirroring.
	ServerURL string
	// AppBaseURL is the origin of the wallet web app; HTTP offer links point at it.
	AppBaseURL string
	// OfferScheme is the custom URI scheme of the mobile wallet deep link.
	OfferScheme   string
	IssuerID      string
	DataFile      string
	InvitationTTL time.Duration
	Mirror        bool
	Shorten       bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := getenv("VCFLOW_ADDR", ":3001")
	public := strings.TrimSuffix(getenv("PUBLIC_BASE_URL", "http://localhost"+portSuffix(addr)), "/")

	return Server{
		Addr:              addr,
		Environment:       getenv("ENVIRONMENT", "development"),
		LogLevel:          parseLevel(os.Getenv("LOG_LEVEL")),
		PublicBaseURL:     public,
		IssuerID:          getenv("ISSUER_ID", public),
		DemoOfferFallback: getbool("DEMO_OFFER_FALLBACK", true),
		AllowedOrigin:     os.Getenv("CORS_ALLOWED_ORIGIN"),
		IssuerKeySeed:     os.Getenv("ISSUER_KEY_SEED"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

// ClientFromEnv builds the vcctl defaults; flags override each field.
func ClientFromEnv() Client {
	server := strings.TrimSuffix(getenv("VCFLOW_SERVER_URL", "http://localhost:3001"), "/")
	return Client{
		ServerURL:     server,
		AppBaseURL:    strings.TrimSuffix(getenv("APP_BASE_URL", "http://localhost:5173"), "/"),
		OfferScheme:   getenv("OFFER_SCHEME", "openid-credential-offer"),
		IssuerID:      getenv("ISSUER_ID", server),
		DataFile:      getenv("VCFLOW_DATA_FILE", "vcflow.db"),
		InvitationTTL: getduration("INVITATION_TTL", DefaultInvitationTTL),
		Mirror:        getbool("MIRROR_INVITATIONS", true),
		Shorten:       getbool("SHORTEN_INVITATIONS", true),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func portSuffix(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ""
}
