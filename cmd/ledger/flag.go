package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/spf13/cobra"
)

func flagCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Flag incomplete, duplicate, unusual and uncategorized transactions",
		Long: `Run the anomaly flagger over the owner's transactions. Flags are only ever
added, and transactions with an approved review are skipped. The processing
order and per-transaction throttle come from the flagger.order and
flagger.throttle settings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := handler.HandleInterrupts(cmd.Context(), "Flagging")
			defer stop()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			autoSnapshot(ctx, store, "flag")

			eng, classifier, err := newEngine(store)
			if err != nil {
				return err
			}
			defer func() { _ = classifier.Close() }()

			if !noProgress {
				progress := cli.NewProgress(os.Stderr)
				defer progress.Finish()
				eng.WithProgress(progress.Report)
			}

			result, err := eng.FlagOwner(ctx, owner)
			if err != nil {
				if handler.WasInterrupted() {
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatFlagResult(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")

	return cmd
}
