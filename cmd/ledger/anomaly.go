package main

import (
	"encoding/json"
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
)

func anomalyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomaly",
		Short: "Manage stored anomaly rules",
		Long: `Anomaly rules are stored definitions kept for reference. The flagger uses
its built-in checks and does not evaluate them.`,
	}

	cmd.AddCommand(listAnomalyRulesCmd())
	cmd.AddCommand(addAnomalyRuleCmd())
	cmd.AddCommand(setAnomalyRuleActiveCmd("enable", "Mark an anomaly rule active", true))
	cmd.AddCommand(setAnomalyRuleActiveCmd("disable", "Mark an anomaly rule inactive", false))
	cmd.AddCommand(deleteAnomalyRuleCmd())

	return cmd
}

func listAnomalyRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List anomaly rules",
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

			list, err := store.ListAnomalyRules(ctx, owner)
			if err != nil {
				return fmt.Errorf("failed to list anomaly rules: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No anomaly rules found."))
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, rule := range list {
				active := "yes"
				if !rule.IsActive {
					active = "no"
				}
				rows = append(rows, []string{rule.ID, rule.Name, string(rule.Severity), active, string(rule.Condition)})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Severity", "Active", "Condition"}, rows))
			return nil
		},
	}
}

func addAnomalyRuleCmd() *cobra.Command {
	var (
		description string
		severity    string
		condition   string
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:     "add <name>",
		Short:   "Store an anomaly rule",
		Args:    cobra.ExactArgs(1),
		Example: `  ledger anomaly add "Large cash" --severity high --condition '{"amount":{"gt":"1000"}}'`,
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

			rule := &model.AnomalyRule{
				OwnerID:     owner,
				Name:        args[0],
				Description: description,
				Severity:    model.Severity(severity),
				Condition:   json.RawMessage(condition),
				IsActive:    !inactive,
			}
			if err := store.CreateAnomalyRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create anomaly rule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created anomaly rule %q (ID: %s)", rule.Name, rule.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "rule description")
	cmd.Flags().StringVarP(&severity, "severity", "s", string(model.SeverityMedium), "severity: low, medium, high")
	cmd.Flags().StringVar(&condition, "condition", "{}", "condition as a JSON document")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the rule inactive")

	return cmd
}

func setAnomalyRuleActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
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

			if err := store.SetAnomalyRuleActive(ctx, owner, args[0], active); err != nil {
				return fmt.Errorf("failed to update anomaly rule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Anomaly rule %s %sd", args[0], use)))
			return nil
		},
	}
}

func deleteAnomalyRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete an anomaly rule",
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

			if err := store.DeleteAnomalyRule(ctx, owner, args[0]); err != nil {
				return fmt.Errorf("failed to delete anomaly rule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted anomaly rule "+args[0]))
			return nil
		},
	}
}
