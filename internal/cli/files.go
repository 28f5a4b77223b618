package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/cryptox"
	"github.com/dmitrijs2005/helix/internal/index/client"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

// indexSession loads the keypair and returns an index client that signs in
// with it on first use.
func (a *App) indexSession() (*client.Client, error) {
	signer, err := a.loadSigner(false)
	if err != nil {
		return nil, err
	}
	return a.indexClient(signer), nil
}

func (a *App) listCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "list indexed files",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 50},
			&cli.IntFlag{Name: "offset"},
		},
		Action: func(cctx *cli.Context) error {
			ic, err := a.indexSession()
			if err != nil {
				return err
			}
			recs, err := ic.List(cctx.Context, cctx.Int("limit"), cctx.Int("offset"))
			if err != nil {
				return err
			}
			return printRecords(a.out, recs)
		},
	}
}

func (a *App) statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "summarize indexed files",
		Action: func(cctx *cli.Context) error {
			ic, err := a.indexSession()
			if err != nil {
				return err
			}
			st, err := ic.Stats(cctx.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "files      %s\nsize       %s\nencrypted  %s\n\n",
				humanize.Comma(st.TotalFiles), size(st.TotalSize), humanize.Comma(st.EncryptedFiles))
			return printRecords(a.out, st.RecentUploads)
		},
	}
}

func (a *App) rmCmd() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "remove a file from the index; stored bytes stay on the network",
		ArgsUsage: "ID",
		Action: func(cctx *cli.Context) error {
			if cctx.Args().Len() != 1 {
				return cli.Exit("rm expects exactly one ID", 2)
			}
			ic, err := a.indexSession()
			if err != nil {
				return err
			}
			if err := ic.Delete(cctx.Context, cctx.Args().First()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "removed %s\n", cctx.Args().First())
			return nil
		},
	}
}

func (a *App) shareCmd() *cli.Command {
	return &cli.Command{
		Name:      "share",
		Usage:     "create a share link for a file, or list its links",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "expires", Usage: "link lifetime, e.g. 24h"},
			&cli.IntFlag{Name: "max", Usage: "maximum number of downloads"},
			&cli.StringFlag{Name: "password", Usage: "require this password to resolve the link"},
			&cli.BoolFlag{Name: "list", Usage: "list existing links instead of creating one"},
		},
		Action: func(cctx *cli.Context) error {
			if cctx.Args().Len() != 1 {
				return cli.Exit("share expects exactly one ID", 2)
			}
			ic, err := a.indexSession()
			if err != nil {
				return err
			}
			fileID := cctx.Args().First()

			if cctx.Bool("list") {
				links, err := ic.ListShares(cctx.Context, fileID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tDOWNLOADS\tPASSWORD\tEXPIRES")
				for _, l := range links {
					expires := "never"
					if l.ExpiresAt != nil {
						expires = humanize.Time(*l.ExpiresAt)
					}
					downloads := fmt.Sprint(l.DownloadCount)
					if l.MaxDownloads != nil {
						downloads += fmt.Sprintf("/%d", *l.MaxDownloads)
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", l.Key, downloads, l.HasPassword, expires)
				}
				return tw.Flush()
			}

			in := models.NewShareLink{FileID: fileID}
			if d := cctx.Duration("expires"); d > 0 {
				t := time.Now().Add(d)
				in.ExpiresAt = &t
			}
			if cctx.IsSet("max") {
				m := cctx.Int("max")
				in.MaxDownloads = &m
			}
			if cctx.IsSet("password") {
				pw := cctx.String("password")
				in.Password = &pw
			}

			link, err := ic.CreateShare(cctx.Context, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, link.Key)
			return nil
		},
	}
}

func (a *App) decryptCmd() *cli.Command {
	return &cli.Command{
		Name:      "decrypt",
		Aliases:   []string{"get"},
		Usage:     "download an indexed file, decrypting it when needed",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, defaults to the stored name"},
		},
		Action: func(cctx *cli.Context) error {
			if cctx.Args().Len() != 1 {
				return cli.Exit("decrypt expects exactly one ID", 2)
			}
			ctx := cctx.Context

			ic, err := a.indexSession()
			if err != nil {
				return err
			}
			rec, err := ic.Get(ctx, cctx.Args().First())
			if err != nil {
				return err
			}

			data, err := a.bundlerClient().Download(ctx, rec.StorageReceiptID)
			if err != nil {
				return err
			}
			if rec.Encrypted {
				if data, err = decryptRecord(rec, data); err != nil {
					return err
				}
			}

			out := cctx.String("out")
			if out == "" {
				out = rec.Name
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s (%s)\n", out, size(int64(len(data))))
			return nil
		},
	}
}

func decryptRecord(rec models.UploadRecord, ciphertext []byte) ([]byte, error) {
	if rec.EncryptionKey == nil || rec.EncryptionNonce == nil {
		return nil, fmt.Errorf("%w: record %s has no key material", common.ErrValidation, rec.ID)
	}
	key, err := cryptox.ImportKey(*rec.EncryptionKey)
	if err != nil {
		return nil, err
	}
	nonce, err := cryptox.DecodeNonce(*rec.EncryptionNonce)
	if err != nil {
		return nil, err
	}
	return cryptox.Decrypt(ciphertext, nonce, key)
}
