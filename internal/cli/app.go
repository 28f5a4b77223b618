// Package cli is the helix command line: uploads with progress, the
// journal of unfinished uploads, and the file, share and account commands
// backed by the index and the bundler.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/helix/internal/config"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/urfave/cli/v2"
)

// App holds the resolved configuration and the streams commands write to.
type App struct {
	cfg    *config.Config
	log    logging.Logger
	in     *os.File
	out    io.Writer
	errOut io.Writer
}

// New returns the root command. Streams are injectable for tests.
func New(in *os.File, out, errOut io.Writer) *cli.App {
	a := &App{in: in, out: out, errOut: errOut}

	return &cli.App{
		Name:      "helix",
		Usage:     "permanent file storage paid from a Solana wallet",
		Writer:    out,
		ErrWriter: errOut,

		// Exit codes are handled by main, never from inside a command.
		ExitErrHandler: func(*cli.Context, error) {},

		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "JSON config file"},
			&cli.StringFlag{Name: "network", Usage: "devnet or mainnet"},
			&cli.StringFlag{Name: "bundler", Usage: "bundler node URL"},
			&cli.StringFlag{Name: "gateway", Usage: "gateway URL for downloads"},
			&cli.StringFlag{Name: "rpc", Usage: "Solana JSON-RPC URL"},
			&cli.StringFlag{Name: "keypair", Aliases: []string{"k"}, Usage: "payer keypair file"},
			&cli.StringFlag{Name: "index", Usage: "metadata index URL"},
			&cli.StringFlag{Name: "index-grpc", Usage: "metadata index gRPC health address"},
			&cli.StringFlag{Name: "journal", Usage: "journal database file"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.uploadCmd(),
			a.retryIndexCmd(),
			a.pendingCmd(),
			a.fundingsCmd(),
			a.priceCmd(),
			a.balanceCmd(),
			a.listCmd(),
			a.statsCmd(),
			a.rmCmd(),
			a.shareCmd(),
			a.decryptCmd(),
			a.pingCmd(),
		},
	}
}

// Run executes the CLI with args (including the program name).
func Run(ctx context.Context, args []string) error {
	return New(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, args)
}

func (a *App) before(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}

	overlay := map[string]*string{
		"network":    &cfg.Network,
		"bundler":    &cfg.BundlerURL,
		"gateway":    &cfg.GatewayURL,
		"rpc":        &cfg.SolanaRPC,
		"keypair":    &cfg.KeypairPath,
		"index":      &cfg.IndexURL,
		"index-grpc": &cfg.IndexGRPCAddr,
		"journal":    &cfg.JournalPath,
		"log-level":  &cfg.LogLevel,
	}
	for name, dst := range overlay {
		if cctx.IsSet(name) {
			*dst = cctx.String(name)
		}
	}

	if err := cfg.Resolve(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logging.New(a.errOut, cfg.LogLevel, cfg.LogFormat)
	return nil
}
