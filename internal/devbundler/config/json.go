package config

import "github.com/dmitrijs2005/helix/internal/flagx"

// JsonConfig is the file form of Config. Absent fields keep their previous
// value.
type JsonConfig struct {
	EndpointAddr     string  `json:"endpoint_addr"`
	Token            string  `json:"token"`
	ReceivingAddress string  `json:"receiving_address"`
	PricePerByte     *uint64 `json:"price_per_byte"`
	BaseFee          *uint64 `json:"base_fee"`
	MaxItemSize      string  `json:"max_item_size"`
	BlobBackend      string  `json:"blob_backend"`
	S3BaseEndpoint   string  `json:"s3_base_endpoint"`
	S3Region         string  `json:"s3_region"`
	S3Bucket         string  `json:"s3_bucket"`
	S3AccessKey      string  `json:"s3_access_key"`
	S3SecretKey      string  `json:"s3_secret_key"`
	SolanaRPC        string  `json:"solana_rpc"`
	LogLevel         string  `json:"log_level"`
	LogFormat        string  `json:"log_format"`
}

func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	c := &JsonConfig{}
	if err := flagx.DecodeJSONFile(path, c); err != nil {
		return err
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.Token, c.Token)
	setString(&config.ReceivingAddress, c.ReceivingAddress)
	setString(&config.MaxItemSize, c.MaxItemSize)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.SolanaRPC, c.SolanaRPC)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	// zero is a legitimate price, so these are pointers
	if c.PricePerByte != nil {
		config.PricePerByte = *c.PricePerByte
	}
	if c.BaseFee != nil {
		config.BaseFee = *c.BaseFee
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
