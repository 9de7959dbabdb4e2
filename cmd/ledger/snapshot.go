package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage database snapshots",
		Long: `Snapshots are full copies of the database kept next to it. One is taken
automatically before imports, rule application and flagging unless
snapshots.auto is false; the five most recent automatic snapshots are kept.`,
	}

	cmd.AddCommand(createSnapshotCmd())
	cmd.AddCommand(listSnapshotsCmd())
	cmd.AddCommand(restoreSnapshotCmd())
	cmd.AddCommand(deleteSnapshotCmd())

	return cmd
}

func createSnapshotCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create [id]",
		Short: "Snapshot the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			snap, err := store.CreateSnapshot(ctx, id, description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created snapshot %s", snap.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "snapshot description")

	return cmd
}

func listSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshots, err := storage.ListSnapshots(cfg.Database.Path)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No snapshots found."))
				return nil
			}

			rows := make([][]string, 0, len(snapshots))
			for _, snap := range snapshots {
				kind := "manual"
				if snap.IsAuto {
					kind = "auto"
				}
				rows = append(rows, []string{
					snap.ID,
					snap.CreatedAt.Local().Format(time.DateTime),
					kind,
					strconv.Itoa(snap.RowCounts["transactions"]),
					snap.Description,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Created", "Kind", "Transactions", "Description"}, rows))
			return nil
		},
	}
}

func restoreSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the database with a snapshot",
		Long:  `Replace the database with a snapshot. Stop any running 'ledger serve' first.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.RestoreSnapshot(cfg.Database.Path, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored snapshot "+args[0]))
			return nil
		},
	}
}

func deleteSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.DeleteSnapshot(cfg.Database.Path, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted snapshot "+args[0]))
			return nil
		},
	}
}
