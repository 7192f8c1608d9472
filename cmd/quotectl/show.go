package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemstr/arweave-upload/internal/quote"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <quote id>...",
	Short: "show quotes with their files and storage receipts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doShow,
}

func doShow(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	out := cmd.OutOrStdout()
	for _, arg := range args {
		if !quote.ValidID(arg) {
			return fmt.Errorf("invalid quote id %q", arg)
		}
		id := quote.NormalizeID(arg)

		q, err := repo.GetQuote(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get quote %s: %w", id, err)
		}
		if q == nil {
			fmt.Fprintf(out, "%s: not found\n\n", id)
			continue
		}
		files, err := repo.ListFiles(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("list files %s: %w", id, err)
		}
		printQuote(out, q, files)
	}
	return nil
}

func printQuote(out io.Writer, q *quote.Quote, files []quote.File) {
	fmt.Fprintf(out, "quote:    %s\n", q.ID)
	fmt.Fprintf(out, "status:   %s (%d)\n", q.Status, int(q.Status))
	fmt.Fprintf(out, "user:     %s\n", q.UserAddress)
	fmt.Fprintf(out, "payment:  %s of %s on chain %d\n", q.TokenAmount, q.TokenAddress, q.ChainID)
	fmt.Fprintf(out, "approve:  %s\n", q.ApproveAddress)
	fmt.Fprintf(out, "created:  %s\n", q.Created.UTC().Format(time.RFC3339))
	for _, f := range files {
		receipt := f.ReceiptID
		if receipt == "" {
			receipt = "-"
		}
		fmt.Fprintf(out, "  file %d: %d bytes, receipt %s\n", f.Index, f.Length, receipt)
	}
	fmt.Fprintln(out)
}
