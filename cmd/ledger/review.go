package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/review"
	"github.com/Veraticus/spice-ledger/internal/tui"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work through the review queue",
		Long: `Open the interactive review queue: every flagged or uncategorized
transaction that has never been approved. Approving clears a transaction's
flags and keeps it out of later flagging passes.`,
		RunE: runReviewQueue,
	}

	cmd.AddCommand(reviewQueueCmd())
	cmd.AddCommand(listReviewsCmd())
	cmd.AddCommand(decideCmd("approve", model.ReviewApproved))
	cmd.AddCommand(decideCmd("reject", model.ReviewRejected))
	cmd.AddCommand(createReviewCmd())
	cmd.AddCommand(updateReviewCmd())

	return cmd
}

func runReviewQueue(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := tui.Run(ctx, tui.Config{
		Reviewer:   review.NewService(store),
		Categories: store,
		OwnerID:    owner,
		Output:     os.Stderr,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Approved %d, rejected %d, skipped %d",
		stats.Approved, stats.Rejected, stats.Skipped)))
	return nil
}

func reviewQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Print the review queue without opening it",
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

			queue, err := review.NewService(store).Queue(ctx, owner)
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Nothing to review."))
				return nil
			}

			names, err := categoryNames(ctx, store, owner)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(queue))
			for _, txn := range queue {
				rows = append(rows, cli.TransactionRow(txn, names))
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("Review queue (%d)", len(queue))))
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(cli.TransactionHeaders, rows))
			return nil
		},
	}
}

func listReviewsCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			var filter *model.ReviewStatus
			if status != "" {
				parsed, err := model.ParseReviewStatus(status)
				if err != nil {
					return err
				}
				filter = &parsed
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			reviews, err := review.NewService(store).List(ctx, owner, filter)
			if err != nil {
				return fmt.Errorf("failed to list reviews: %w", err)
			}
			if len(reviews) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No reviews found."))
				return nil
			}

			rows := make([][]string, 0, len(reviews))
			for _, r := range reviews {
				reviewedAt := ""
				if r.ReviewedAt != nil {
					reviewedAt = r.ReviewedAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{r.ID, r.TransactionID, string(r.Status), reviewedAt, r.Notes})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Transaction", "Status", "Reviewed", "Notes"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only reviews with this status: pending, approved, rejected")

	return cmd
}

func decideCmd(use string, status model.ReviewStatus) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   use + " <transaction-id>",
		Short: fmt.Sprintf("Mark a transaction %s", status),
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

			reviews := review.NewService(store)
			var r *model.Review
			if status == model.ReviewApproved {
				r, err = reviews.Approve(ctx, owner, id, notes)
			} else {
				r, err = reviews.Reject(ctx, owner, id, notes)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Transaction %s %s (review %s)", id, r.Status, r.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "review notes")

	return cmd
}

func createReviewCmd() *cobra.Command {
	var (
		status string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "create <transaction-id>",
		Short: "Record a review with any status",
		Long:  `Record a review without side effects. Use approve to also clear flags.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			parsed, err := model.ParseReviewStatus(status)
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
			r, err := review.NewService(store).Create(ctx, owner, id, parsed, notes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s review %s", r.Status, r.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(model.ReviewPending), "review status: pending, approved, rejected")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")

	return cmd
}

func updateReviewCmd() *cobra.Command {
	var (
		status string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "update <review-id>",
		Short: "Decide a pending review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			parsed, err := model.ParseReviewStatus(status)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r, err := review.NewService(store).Update(ctx, owner, args[0], parsed, notes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Review %s is now %s", r.ID, r.Status)))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "new status: approved or rejected (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}
