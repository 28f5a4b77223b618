package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func (a *App) retryIndexCmd() *cli.Command {
	return &cli.Command{
		Name:      "retry-index",
		Usage:     "record an already stored upload in the index again",
		ArgsUsage: "RECEIPT",
		Action: func(cctx *cli.Context) error {
			if cctx.Args().Len() != 1 {
				return cli.Exit("retry-index expects exactly one RECEIPT", 2)
			}
			ctx := cctx.Context

			signer, err := a.loadSigner(false)
			if err != nil {
				return err
			}
			p, err := a.newPipeline(ctx, signer)
			if err != nil {
				return err
			}
			defer p.Close()

			pending, err := p.journal.Get(ctx, cctx.Args().First())
			if err != nil {
				return err
			}
			if pending.IndexedAt != nil {
				fmt.Fprintf(a.out, "Already indexed as %s\n", pending.RecordID)
				return nil
			}

			run := p.orch.RetryRecording(ctx, pending.Owner, pending.Upload)
			for u := range run.Updates() {
				printProgress(a.out, u)
			}
			rec, err := run.Wait()
			a.summarize(run, p, rec, err)
			return err
		},
	}
}

func (a *App) pendingCmd() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "list stored uploads that are not in the index yet",
		Action: func(cctx *cli.Context) error {
			j, err := a.openJournal(cctx.Context)
			if err != nil {
				return err
			}
			defer j.Close()

			list, err := j.Pending(cctx.Context)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "Nothing pending")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECEIPT\tNAME\tSIZE\tSTORED\tLAST ERROR")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.Upload.StorageReceiptID, p.Upload.Name, size(p.Upload.Size), humanize.Time(p.CreatedAt), p.LastError)
			}
			return tw.Flush()
		},
	}
}

func (a *App) fundingsCmd() *cli.Command {
	return &cli.Command{
		Name:  "fundings",
		Usage: "list funding transfers, e.g. --status ambiguous",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "only transfers in this state"},
		},
		Action: func(cctx *cli.Context) error {
			j, err := a.openJournal(cctx.Context)
			if err != nil {
				return err
			}
			defer j.Close()

			list, err := j.Fundings(cctx.Context, models.FundingStatus(cctx.String("status")))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SIGNATURE\tSTATUS\tAMOUNT\tTO\tWHEN")
			for _, f := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					f.Signature, f.Status, sol(f.AmountAtomic), f.Destination, humanize.Time(f.CreatedAt))
			}
			return tw.Flush()
		},
	}
}
