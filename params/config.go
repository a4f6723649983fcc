package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type API struct {
	ListenAddr string
}

type Gossip struct {
	Enabled    bool
	ListenAddr string
	Bootstrap  []string
}

type Engine struct {
	ChainID       int64
	DomainName    string
	DomainVersion string
	QuoteToken    string
	QuoteDecimals int
	FeeTier       uint32
	SwapDeadline  time.Duration
}

type Node struct {
	DataDir string
	LogFile string
	// BotKeyHex is the hex-encoded private key the node signs venue calls
	// with. Its derived address must hold external-call permission for every
	// account it executes against.
	BotKeyHex string
}

type Config struct {
	API    API
	Gossip Gossip
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		API: API{
			ListenAddr: ":8080",
		},
		Gossip: Gossip{
			Enabled:    false,
			ListenAddr: "/ip4/0.0.0.0/tcp/9000",
		},
		Engine: Engine{
			ChainID:       1,
			DomainName:    "GearBot",
			DomainVersion: "1",
			QuoteDecimals: 6,
			FeeTier:       500,
			SwapDeadline:  5 * time.Minute,
		},
		Node: Node{
			DataDir: "data",
			LogFile: "gearbot.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.API.ListenAddr = getEnv("API_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.BotKeyHex = getEnv("BOT_PRIVATE_KEY", cfg.Node.BotKeyHex)

	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Engine.ChainID = id
		}
	}
	cfg.Engine.DomainName = getEnv("DOMAIN_NAME", cfg.Engine.DomainName)
	cfg.Engine.DomainVersion = getEnv("DOMAIN_VERSION", cfg.Engine.DomainVersion)
	cfg.Engine.QuoteToken = getEnv("QUOTE_TOKEN", cfg.Engine.QuoteToken)
	if dec := os.Getenv("QUOTE_DECIMALS"); dec != "" {
		if d, err := strconv.Atoi(dec); err == nil {
			cfg.Engine.QuoteDecimals = d
		}
	}
	if tier := os.Getenv("SWAP_FEE_TIER"); tier != "" {
		if t, err := strconv.ParseUint(tier, 10, 32); err == nil {
			cfg.Engine.FeeTier = uint32(t)
		}
	}
	if deadline := os.Getenv("SWAP_DEADLINE_MS"); deadline != "" {
		if ms, err := strconv.Atoi(deadline); err == nil {
			cfg.Engine.SwapDeadline = time.Duration(ms) * time.Millisecond
		}
	}

	if enabled := os.Getenv("GOSSIP_ENABLED"); enabled != "" {
		cfg.Gossip.Enabled = enabled == "true"
	}
	cfg.Gossip.ListenAddr = getEnv("GOSSIP_LISTEN_ADDR", cfg.Gossip.ListenAddr)
	if peers := os.Getenv("GOSSIP_BOOTSTRAP"); peers != "" {
		// Example: "/ip4/10.0.0.2/tcp/9000/p2p/<id>,/ip4/10.0.0.3/tcp/9000/p2p/<id>"
		cfg.Gossip.Bootstrap = strings.Split(peers, ",")
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
