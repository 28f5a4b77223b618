package devbundler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/helix/internal/devbundler/config"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	if c.ReceivingAddress == "" {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, err
		}
		c.ReceivingAddress = key.PublicKey().String()
		logger.Warn(ctx, "no receiving address configured, using a throwaway one", "address", c.ReceivingAddress)
	}
	receiver, err := solana.PublicKeyFromBase58(c.ReceivingAddress)
	if err != nil {
		return nil, fmt.Errorf("receiving address: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, err
	}

	var deposits DepositVerifier
	if c.SolanaRPC != "" {
		deposits = NewRPCDeposits(rpc.New(c.SolanaRPC), receiver)
	}

	srv := NewServer(Options{
		Address:          c.EndpointAddr,
		Token:            c.Token,
		ReceivingAddress: c.ReceivingAddress,
		Pricing:          Pricing{BaseFee: c.BaseFee, PricePerByte: c.PricePerByte},
		MaxItemSize:      c.MaxItemSize,
	}, NewAccounts(), blobs, deposits, logger)

	return &App{config: c, logger: logger, server: srv}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (BlobStore, error) {
	switch c.BlobBackend {
	case "memory", "":
		return NewMemoryBlobs(), nil
	case "s3":
		return NewS3Blobs(ctx, S3Settings{
			BaseEndpoint: c.S3BaseEndpoint,
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	return app.server.Run(ctx)
}
