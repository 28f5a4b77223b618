package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/pricing"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// AutoApprover approves everything. It backs the --yes flag.
type AutoApprover struct{}

func (AutoApprover) Approve(context.Context, Intent) (bool, error) { return true, nil }

// TerminalApprover prints the transfer and asks for confirmation on an
// interactive terminal. When stdin is not a terminal it declines, since
// there is nobody to ask.
type TerminalApprover struct {
	in  *os.File
	out io.Writer
}

func NewTerminalApprover(in *os.File, out io.Writer) *TerminalApprover {
	return &TerminalApprover{in: in, out: out}
}

func (a *TerminalApprover) Approve(_ context.Context, intent Intent) (bool, error) {
	if !isTerminal(int(a.in.Fd())) {
		return false, nil
	}
	return confirm(bufio.NewReader(a.in), a.out, intent)
}

func confirm(reader *bufio.Reader, w io.Writer, intent Intent) (bool, error) {
	amount := pricing.ToDecimal(intent.Lamports, common.TokenDecimals)
	if _, err := fmt.Fprintf(w, "Transfer %s SOL\n  from %s\n  to   %s\n  memo %q\nApprove? [y/N] ",
		amount.String(), intent.From, intent.To, intent.Memo); err != nil {
		return false, err
	}

	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
