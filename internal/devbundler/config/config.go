// Package config handles configuration for the dev bundler: defaults, then
// an optional JSON file (-c), then command-line flags.
package config

// Config holds runtime settings for the dev bundler.
//
// Fields:
//   - EndpointAddr: bind address of the bundler API and gateway.
//   - Token: payment token path segment ("solana").
//   - ReceivingAddress: where deposits go; a throwaway address is generated when empty.
//   - PricePerByte / BaseFee: linear price in atomic units, base + perByte*n.
//   - MaxItemSize: largest accepted data item, echo body-limit syntax ("100M").
//   - BlobBackend: "memory" or "s3".
//   - S3*: S3-compatible (MinIO) object storage settings for the s3 backend.
//   - SolanaRPC: optional; when set, deposits are verified and credited from chain.
//   - LogLevel / LogFormat: see logging.New.
type Config struct {
	EndpointAddr     string
	Token            string
	ReceivingAddress string
	PricePerByte     uint64
	BaseFee          uint64
	MaxItemSize      string
	BlobBackend      string
	S3BaseEndpoint   string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	SolanaRPC        string
	LogLevel         string
	LogFormat        string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":4000"
	c.Token = "solana"
	c.ReceivingAddress = ""
	c.PricePerByte = 100
	c.BaseFee = 5000
	c.MaxItemSize = "100M"
	c.BlobBackend = "memory"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3Region = "us-east-1"
	c.S3Bucket = "helix"
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.SolanaRPC = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig applies defaults, then the JSON file named by -c/-config in
// args, then the flags in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
