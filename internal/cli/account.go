package cli

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/helix/internal/index/client"
	"github.com/dmitrijs2005/helix/internal/pricing"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func (a *App) priceCmd() *cli.Command {
	return &cli.Command{
		Name:      "price",
		Usage:     "quote the cost of storing a payload, e.g. 10MB",
		ArgsUsage: "SIZE",
		Action: func(cctx *cli.Context) error {
			if cctx.Args().Len() != 1 {
				return cli.Exit("price expects exactly one SIZE", 2)
			}
			n, err := humanize.ParseBytes(cctx.Args().First())
			if err != nil {
				return cli.Exit(fmt.Sprintf("bad size %q: %v", cctx.Args().First(), err), 2)
			}

			cost, err := pricing.NewOracle(a.bundlerClient(), a.log).GetCost(cctx.Context, int64(n))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s costs %s (%s lamports)\n",
				size(cost.Bytes), sol(cost.RequiredAtomicUnits), strconv.FormatUint(cost.RequiredAtomicUnits, 10))
			return nil
		},
	}
}

func (a *App) balanceCmd() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "show the prepaid bundler balance of the keypair",
		Action: func(cctx *cli.Context) error {
			signer, err := a.loadSigner(false)
			if err != nil {
				return err
			}
			addr := signer.PublicKey().String()
			bal, err := a.bundlerClient().Balance(cctx.Context, addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\n", addr, sol(bal))
			return nil
		},
	}
}

func (a *App) pingCmd() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "check that the metadata index is serving",
		Action: func(cctx *cli.Context) error {
			if err := client.Ping(cctx.Context, a.cfg.IndexGRPCAddr); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "index at %s is serving\n", a.cfg.IndexGRPCAddr)
			return nil
		},
	}
}
