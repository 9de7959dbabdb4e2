package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/importer"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn", "tx"},
		Short:   "Manage transactions",
		Long:    `List, add, import, categorize and delete the owner's transactions.`,
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(importTransactionsCmd())
	cmd.AddCommand(categorizeTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		start, end, category string
		flagged, clean       bool
		limit, offset        int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.TransactionFilter{Limit: limit, Offset: offset}
			if filter.StartDate, err = parseOptionalDate(start); err != nil {
				return err
			}
			if filter.EndDate, err = parseOptionalDate(end); err != nil {
				return err
			}
			if flagged && clean {
				return fmt.Errorf("--flagged and --clean are mutually exclusive")
			}
			if flagged || clean {
				filter.IsFlagged = &flagged
			}
			if category != "" {
				ids, err := resolveCategories(ctx, store, owner, []string{category})
				if err != nil {
					return err
				}
				filter.CategoryID = ids[0]
			}

			transactions, err := store.ListTransactions(ctx, owner, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			if len(transactions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No transactions found."))
				return nil
			}

			names, err := categoryNames(ctx, store, owner)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(transactions))
			for _, txn := range transactions {
				rows = append(rows, cli.TransactionRow(txn, names))
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(cli.TransactionHeaders, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "only transactions on or after this date (2006-01-02)")
	cmd.Flags().StringVar(&end, "end", "", "only transactions on or before this date (2006-01-02)")
	cmd.Flags().StringVar(&category, "category", "", "only transactions in this category (id or name)")
	cmd.Flags().BoolVar(&flagged, "flagged", false, "only flagged transactions")
	cmd.Flags().BoolVar(&clean, "clean", false, "only transactions without flags")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of transactions (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of transactions to skip")

	return cmd
}

func addTransactionCmd() *cobra.Command {
	var (
		date       string
		categories []string
	)

	cmd := &cobra.Command{
		Use:   "add <amount> <description>",
		Short: "Add a manual transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			amount, err := decimal.NewFromString(strings.TrimSpace(args[0]))
			if err != nil {
				return common.NewValidationError("amount", fmt.Sprintf("not a decimal amount: %q", args[0]))
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn := service.NewTransaction{
				Description: args[1],
				Source:      model.SourceManual,
				Amount:      amount,
			}
			if day, err := parseOptionalDate(date); err != nil {
				return err
			} else if day != nil {
				txn.Date = *day
			}
			if txn.CategoryIDs, err = resolveCategories(ctx, store, owner, categories); err != nil {
				return err
			}

			created, err := store.CreateTransaction(ctx, owner, txn)
			if err != nil {
				return fmt.Errorf("failed to create transaction: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created transaction %s", created.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "transaction date (2006-01-02)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "category id or name (repeatable)")

	return cmd
}

func importTransactionsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import transactions from CSV, OFX or QFX files",
		Long: `Import transactions from files. CSV rows are amount,description,date[,categoryIds]
with semicolon separated category ids. The format is taken from the file
extension unless --format is given. Each file is stored in one batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			autoSnapshot(ctx, store, "import")

			imp := importer.New(store)
			out := cmd.OutOrStdout()
			for _, path := range args {
				result, err := importFile(cmd, imp, owner, path, format)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", path, err)
				}
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from %s", len(result.Imported), filepath.Base(path))))
				for _, rowErr := range result.RowErrors {
					fmt.Fprintln(out, cli.FormatWarning(rowErr.Error()))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "file format: csv or ofx (default: from extension)")

	return cmd
}

func importFile(cmd *cobra.Command, imp *importer.Importer, owner, path, format string) (*importer.Result, error) {
	if format == "" {
		format = detectFormat(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch format {
	case "csv":
		return imp.ImportCSV(cmd.Context(), owner, f)
	case "ofx", "qfx":
		return imp.ImportOFX(cmd.Context(), owner, f)
	default:
		return nil, common.NewValidationError("format", fmt.Sprintf("unsupported format %q", format))
	}
}

// detectFormat picks the import format from a file extension.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx":
		return "ofx"
	case ".qfx":
		return "qfx"
	case ".csv", ".txt":
		return "csv"
	}
	return ""
}

func categorizeTransactionCmd() *cobra.Command {
	var categories []string

	cmd := &cobra.Command{
		Use:   "categorize <transaction-id>",
		Short: "Replace a transaction's categories",
		Long:  `Replace every category of a transaction. Pass no --category to clear them.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := resolveTransactionID(ctx, store, owner, args[0])
			if err != nil {
				return err
			}
			ids, err := resolveCategories(ctx, store, owner, categories)
			if err != nil {
				return err
			}
			if err := store.SetTransactionCategories(ctx, owner, id, ids); err != nil {
				return fmt.Errorf("failed to categorize transaction: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Set %d categories on %s", len(ids), id)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&categories, "category", nil, "category id or name (repeatable)")

	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := resolveTransactionID(ctx, store, owner, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteTransaction(ctx, owner, id); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted transaction "+id))
			return nil
		},
	}
}
