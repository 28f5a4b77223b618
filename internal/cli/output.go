package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/pricing"
	"github.com/dustin/go-humanize"
)

func sol(lamports uint64) string {
	return pricing.ToDecimal(lamports, common.TokenDecimals).String() + " SOL"
}

func size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func printRecords(w io.Writer, recs []models.UploadRecord) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tENCRYPTED\tRECEIPT\tUPLOADED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			r.ID, r.Name, size(r.Size), r.Encrypted, r.StorageReceiptID, humanize.Time(r.CreatedAt))
	}
	return tw.Flush()
}

func printProgress(w io.Writer, p models.UploadProgress) {
	if p.Stage == models.StageError {
		return
	}
	bar := strings.Repeat("#", p.Percent/5) + strings.Repeat(".", 20-p.Percent/5)
	fmt.Fprintf(w, "[%s] %3d%% %-12s %s\n", bar, p.Percent, p.Stage, p.Message)
}
