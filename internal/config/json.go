package config

import (
	"github.com/dmitrijs2005/helix/internal/flagx"
	"github.com/dmitrijs2005/helix/internal/timex"
	"github.com/shopspring/decimal"
)

// JsonConfig is the file form of Config. Durations accept "90s" or integer
// nanoseconds. Absent fields keep their previous value.
type JsonConfig struct {
	Network        string              `json:"network"`
	BundlerURL     string              `json:"bundler_url"`
	GatewayURL     string              `json:"gateway_url"`
	SolanaRPC      string              `json:"solana_rpc"`
	KeypairPath    string              `json:"keypair"`
	IndexURL       string              `json:"index_url"`
	IndexGRPCAddr  string              `json:"index_grpc"`
	JournalPath    string              `json:"journal"`
	FundingBuffer  decimal.NullDecimal `json:"funding_buffer"`
	ConfirmTimeout timex.Duration      `json:"confirm_timeout"`
	CreditTimeout  timex.Duration      `json:"credit_timeout"`
	NetworkRetries *int                `json:"network_retries"`
	AppName        string              `json:"app_name"`
	LogLevel       string              `json:"log_level"`
	LogFormat      string              `json:"log_format"`
}

func parseJson(config *Config, path string) error {
	c := &JsonConfig{}
	if err := flagx.DecodeJSONFile(path, c); err != nil {
		return err
	}

	setString(&config.Network, c.Network)
	setString(&config.BundlerURL, c.BundlerURL)
	setString(&config.GatewayURL, c.GatewayURL)
	setString(&config.SolanaRPC, c.SolanaRPC)
	setString(&config.KeypairPath, c.KeypairPath)
	setString(&config.IndexURL, c.IndexURL)
	setString(&config.IndexGRPCAddr, c.IndexGRPCAddr)
	setString(&config.JournalPath, c.JournalPath)
	setString(&config.AppName, c.AppName)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	if c.FundingBuffer.Valid {
		config.FundingBuffer = c.FundingBuffer.Decimal
	}
	if c.ConfirmTimeout.Duration > 0 {
		config.ConfirmTimeout = c.ConfirmTimeout.Duration
	}
	if c.CreditTimeout.Duration > 0 {
		config.CreditTimeout = c.CreditTimeout.Duration
	}
	if c.NetworkRetries != nil {
		config.NetworkRetries = *c.NetworkRetries
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
