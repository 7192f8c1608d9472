package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/quote"
)

var (
	listStatus string
	listUser   string
	listLimit  int
)

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "", "", "list quotes in this status (name or code)")
	listCmd.Flags().StringVarP(&listUser, "user", "", "", "list quotes owned by this address")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum number of quotes")

	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list quotes, newest first",
	RunE:  doList,
}

func doList(cmd *cobra.Command, args []string) error {
	if (listStatus == "") == (listUser == "") {
		return fmt.Errorf("must list by exactly one of --status or --user")
	}
	if listLimit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	var quotes []quote.Quote
	switch {
	case listStatus != "":
		status, err := quote.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		quotes, err = repo.ListQuotesByStatus(cmd.Context(), status, listLimit)
		if err != nil {
			return fmt.Errorf("list by status: %w", err)
		}
	default:
		if !chain.ValidAddress(listUser) {
			return fmt.Errorf("invalid address %q", listUser)
		}
		quotes, err = repo.ListQuotesByUser(cmd.Context(), chain.NormalizeAddress(listUser), listLimit)
		if err != nil {
			return fmt.Errorf("list by user: %w", err)
		}
	}

	return printQuotes(cmd.OutOrStdout(), quotes)
}

func printQuotes(out io.Writer, quotes []quote.Quote) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tStatus\tUser\tChain\tAmount\tFiles\tCreated\n")
	for _, q := range quotes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			q.ID, q.Status, q.UserAddress, q.ChainID, q.TokenAmount, len(q.Files),
			q.Created.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}
