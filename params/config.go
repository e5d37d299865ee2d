package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Node struct {
	APIAddr string
	DBPath  string
	// AdminAddr is the only identity allowed to bind the relay.
	AdminAddr string
	// CoordinatorAddr is the only caller allowed on the swap path.
	CoordinatorAddr string
}

type Venue struct {
	Asset0      string
	Asset1      string
	FeeBps      int64
	TickSpacing int64
}

type Feed struct {
	URL string
}

type Relay struct {
	// PrivateKeyHex signs outgoing authorizations. Empty runs the node
	// venue-only: no trigger authority, no feed.
	PrivateKeyHex  string
	TargetDomain   uint64
	TargetContract string
	GasBudget      uint64
	Beneficiary    string
	// ListenAddr enables the gossipsub transport; empty uses the in-process
	// loopback channel.
	ListenAddr string
	Bootstrap  []string
}

type Config struct {
	Node  Node
	Venue Venue
	Feed  Feed
	Relay Relay
}

func Default() Config {
	return Config{
		Node: Node{
			APIAddr: ":8080",
			DBPath:  "data/crossfill",
		},
		Venue: Venue{
			FeeBps:      30,
			TickSpacing: 60,
		},
		Relay: Relay{
			TargetDomain: 1,
			GasBudget:    200_000,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.DBPath = getEnv("DB_PATH", cfg.Node.DBPath)
	cfg.Node.AdminAddr = getEnv("ADMIN_ADDR", cfg.Node.AdminAddr)
	cfg.Node.CoordinatorAddr = getEnv("COORDINATOR_ADDR", cfg.Node.CoordinatorAddr)

	cfg.Venue.Asset0 = getEnv("VENUE_ASSET0", cfg.Venue.Asset0)
	cfg.Venue.Asset1 = getEnv("VENUE_ASSET1", cfg.Venue.Asset1)
	if fee := os.Getenv("VENUE_FEE_BPS"); fee != "" {
		if v, err := strconv.ParseInt(fee, 10, 64); err == nil {
			cfg.Venue.FeeBps = v
		}
	}
	if tick := os.Getenv("VENUE_TICK_SPACING"); tick != "" {
		if v, err := strconv.ParseInt(tick, 10, 64); err == nil {
			cfg.Venue.TickSpacing = v
		}
	}

	cfg.Feed.URL = getEnv("FEED_URL", cfg.Feed.URL)

	cfg.Relay.PrivateKeyHex = getEnv("RELAY_PRIVKEY", cfg.Relay.PrivateKeyHex)
	cfg.Relay.TargetContract = getEnv("RELAY_TARGET_CONTRACT", cfg.Relay.TargetContract)
	cfg.Relay.Beneficiary = getEnv("RELAY_BENEFICIARY", cfg.Relay.Beneficiary)
	cfg.Relay.ListenAddr = getEnv("RELAY_LISTEN", cfg.Relay.ListenAddr)
	if domain := os.Getenv("RELAY_TARGET_DOMAIN"); domain != "" {
		if v, err := strconv.ParseUint(domain, 10, 64); err == nil {
			cfg.Relay.TargetDomain = v
		}
	}
	if gas := os.Getenv("RELAY_GAS_BUDGET"); gas != "" {
		if v, err := strconv.ParseUint(gas, 10, 64); err == nil {
			cfg.Relay.GasBudget = v
		}
	}
	if bs := os.Getenv("RELAY_BOOTSTRAP"); bs != "" {
		cfg.Relay.Bootstrap = strings.Split(bs, ",")
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
