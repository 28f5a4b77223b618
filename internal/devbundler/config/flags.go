package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/helix/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a string   bind address (e.g. ":4000")
//	-r string   receiving address for deposits
//	-p uint     price per byte, atomic units
//	-f uint     base fee per item, atomic units
//	-b string   blob backend: memory | s3
//	-e string   S3 base endpoint
//	-k string   S3 bucket
//	-s string   Solana RPC URL for deposit checks
//	-l string   log level
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-r", "-p", "-f", "-b", "-e", "-k", "-s", "-l"})

	fs := flag.NewFlagSet("devbundler", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port")
	fs.StringVar(&config.ReceivingAddress, "r", config.ReceivingAddress, "receiving address")
	fs.Uint64Var(&config.PricePerByte, "p", config.PricePerByte, "price per byte")
	fs.Uint64Var(&config.BaseFee, "f", config.BaseFee, "base fee")
	fs.StringVar(&config.BlobBackend, "b", config.BlobBackend, "blob backend")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Bucket, "k", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.SolanaRPC, "s", config.SolanaRPC, "solana RPC URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
