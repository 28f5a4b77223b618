package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/filex"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

func (a *App) uploadCmd() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "store a file permanently and record it in the index",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "encrypt", Aliases: []string{"e"}, Usage: "encrypt before upload; the key is kept in the index"},
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "extra tag NAME=VALUE, repeatable"},
			&cli.StringFlag{Name: "mime", Usage: "content type, detected when omitted"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "approve funding transfers without asking"},
		},
		Action: a.upload,
	}
}

func parseTags(raw []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: tag %q is not NAME=VALUE", common.ErrValidation, kv)
		}
		tags = append(tags, models.Tag{Name: strings.TrimSpace(name), Value: value})
	}
	return tags, nil
}

func (a *App) upload(cctx *cli.Context) error {
	if cctx.Args().Len() != 1 {
		return cli.Exit("upload expects exactly one FILE", 2)
	}
	path := cctx.Args().First()
	ctx := cctx.Context

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tags, err := parseTags(cctx.StringSlice("tag"))
	if err != nil {
		return err
	}
	mime := cctx.String("mime")
	if mime == "" {
		mime = filex.DetectMimeType(path, data)
	}

	signer, err := a.loadSigner(cctx.Bool("yes"))
	if err != nil {
		return err
	}
	p, err := a.newPipeline(ctx, signer)
	if err != nil {
		return err
	}
	defer p.Close()

	run := p.orch.Start(ctx, data, orchestrator.Options{
		Name:     filepath.Base(path),
		MimeType: mime,
		Encrypt:  cctx.Bool("encrypt"),
		Tags:     tags,
	}, p.owner)

	for u := range run.Updates() {
		printProgress(a.out, u)
	}
	rec, err := run.Wait()
	a.summarize(run, p, rec, err)
	return err
}

// summarize prints the terminal state, what was spent, whether the bytes
// are stored and what to do next.
func (a *App) summarize(run *orchestrator.Run, p *pipeline, rec models.UploadRecord, err error) {
	last := run.Last()
	w := a.out

	fmt.Fprintln(w)
	if err == nil {
		fmt.Fprintf(w, "Upload complete\n  record   %s\n  receipt  %s\n  size     %s\n", rec.ID, rec.StorageReceiptID, size(rec.Size))
	} else {
		var se *orchestrator.StageError
		stage := last.Stage
		if errors.As(err, &se) {
			stage = se.Stage
		}
		fmt.Fprintf(w, "Upload failed in %s (%s)\n  error    %v\n", stage, last.ErrorKind, err)
	}

	fmt.Fprintf(w, "  funded   %s\n", sol(p.spend.Funded()))
	if last.ReceiptID != "" {
		fmt.Fprintf(w, "  stored   yes, receipt %s\n", last.ReceiptID)
	} else {
		fmt.Fprintln(w, "  stored   no")
	}

	if err != nil {
		fmt.Fprintf(w, "  next     %s\n", orchestrator.NextAction(last.ErrorKind))
		if errors.Is(err, common.ErrStoredButUnindexed) {
			fmt.Fprintf(w, "           helix retry-index %s\n", last.ReceiptID)
		}
	}
}
