package config

import (
	"github.com/dmitrijs2005/helix/internal/flagx"
	"github.com/dmitrijs2005/helix/internal/timex"
)

// JsonConfig is the file form of Config. Durations accept "5m" or integer
// nanoseconds. Absent fields keep their previous value.
type JsonConfig struct {
	EndpointAddrHTTP          string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC          string         `json:"endpoint_addr_grpc"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	TokenValidityDuration     timex.Duration `json:"token_validity_duration"`
	ChallengeValidityDuration timex.Duration `json:"challenge_validity_duration"`
	RedisAddr                 string         `json:"redis_addr"`
	LogLevel                  string         `json:"log_level"`
	LogFormat                 string         `json:"log_format"`
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

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	if c.TokenValidityDuration.Duration > 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.ChallengeValidityDuration.Duration > 0 {
		config.ChallengeValidityDuration = c.ChallengeValidityDuration.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
