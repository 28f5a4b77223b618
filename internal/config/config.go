// Package config holds the helix CLI settings. Sources are applied in order:
// defaults, an optional JSON file, HELIX_* environment variables, and
// finally the command-line flags (see package cli).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/filex"
	"github.com/dmitrijs2005/helix/internal/reconcile"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"

	envPrefix = "HELIX"
)

// Config holds runtime settings for the CLI.
//
// Fields:
//   - Network: devnet or mainnet; picks the default bundler and RPC endpoints.
//   - BundlerURL / GatewayURL: bundling node and the gateway downloads come from.
//   - SolanaRPC: JSON-RPC endpoint for funding transfers.
//   - KeypairPath: solana-keygen JSON keypair of the payer.
//   - IndexURL / IndexGRPCAddr: metadata index API and its gRPC health endpoint.
//   - JournalPath: SQLite file of receipts awaiting indexing and funding transfers.
//   - FundingBuffer: fraction added on top of a shortfall when funding.
//   - ConfirmTimeout / CreditTimeout: how long to wait for chain confirmation
//     and for the bundler to credit a deposit.
//   - NetworkRetries: extra attempts after a network error per stage.
type Config struct {
	Network        string          `envconfig:"NETWORK"`
	BundlerURL     string          `envconfig:"BUNDLER_URL"`
	GatewayURL     string          `envconfig:"GATEWAY_URL"`
	SolanaRPC      string          `envconfig:"SOLANA_RPC"`
	KeypairPath    string          `envconfig:"KEYPAIR"`
	IndexURL       string          `envconfig:"INDEX_URL"`
	IndexGRPCAddr  string          `envconfig:"INDEX_GRPC"`
	JournalPath    string          `envconfig:"JOURNAL"`
	FundingBuffer  decimal.Decimal `envconfig:"FUNDING_BUFFER"`
	ConfirmTimeout time.Duration   `envconfig:"CONFIRM_TIMEOUT"`
	CreditTimeout  time.Duration   `envconfig:"CREDIT_TIMEOUT"`
	NetworkRetries int             `envconfig:"NETWORK_RETRIES"`
	AppName        string          `envconfig:"APP_NAME"`
	LogLevel       string          `envconfig:"LOG_LEVEL"`
	LogFormat      string          `envconfig:"LOG_FORMAT"`
}

// LoadDefaults populates c with devnet defaults. Endpoints left empty are
// filled from Network by Resolve.
func (c *Config) LoadDefaults() {
	c.Network = NetworkDevnet
	c.BundlerURL = ""
	c.GatewayURL = "https://gateway.irys.xyz"
	c.SolanaRPC = ""
	c.KeypairPath = ""
	c.IndexURL = "http://127.0.0.1:8080"
	c.IndexGRPCAddr = "127.0.0.1:50051"
	c.JournalPath = ""
	c.FundingBuffer = reconcile.DefaultBuffer
	c.ConfirmTimeout = 60 * time.Second
	c.CreditTimeout = 90 * time.Second
	c.NetworkRetries = 3
	c.AppName = common.DefaultAppName
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// Load applies defaults, the JSON file at jsonPath (if not empty) and the
// environment. Flags are applied by the caller, then Resolve.
func Load(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if jsonPath != "" {
		if err := parseJson(cfg, jsonPath); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// Resolve fills network-dependent endpoints and local paths, and checks
// the values that cannot be fixed later.
func (c *Config) Resolve() error {
	switch c.Network {
	case NetworkDevnet:
		setDefault(&c.BundlerURL, "https://devnet.irys.xyz")
		setDefault(&c.SolanaRPC, rpc.DevNet_RPC)
	case NetworkMainnet:
		setDefault(&c.BundlerURL, "https://node1.irys.xyz")
		setDefault(&c.SolanaRPC, rpc.MainNetBeta_RPC)
	default:
		return fmt.Errorf("%w: unknown network %q", common.ErrValidation, c.Network)
	}

	if c.FundingBuffer.IsNegative() {
		return fmt.Errorf("%w: funding buffer must not be negative", common.ErrValidation)
	}
	if c.NetworkRetries < 0 {
		return fmt.Errorf("%w: network retries must not be negative", common.ErrValidation)
	}

	if c.JournalPath == "" {
		dir, err := filex.HomeSubdDir(".helix")
		if err != nil {
			return err
		}
		c.JournalPath = filepath.Join(dir, "journal.db")
	}
	if c.KeypairPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("home dir: %w", err)
		}
		c.KeypairPath = filepath.Join(home, ".config", "solana", "id.json")
	}
	return nil
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
