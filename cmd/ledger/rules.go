package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage and apply categorization rules",
		Long: `Categorization rules attach a category to every transaction matching a
condition on the description, amount, date, or an ai prompt. Lower priority
values run first.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(setRuleActiveCmd("enable", "Enable a rule", true))
	cmd.AddCommand(setRuleActiveCmd("disable", "Disable a rule without deleting it", false))
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(applyRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in priority order",
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

			list, err := store.ListCategorizationRules(ctx, owner)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No rules found. Use 'ledger rules add' to create one."))
				return nil
			}

			names, err := categoryNames(ctx, store, owner)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, rule := range list {
				active := cli.SuccessIcon
				if !rule.IsActive {
					active = cli.SubtleStyle.Render("off")
				}
				rows = append(rows, []string{
					rule.ID,
					strconv.Itoa(rule.Priority),
					active,
					rules.Explain(rule, names[rule.CategoryID]),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Priority", "Active", "Rule"}, rows))
			return nil
		},
	}
}

func addRuleCmd() *cobra.Command {
	var (
		category string
		cond     model.Condition
		end      string
		priority int
		inactive bool
		condType string
		operator string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a categorization rule",
		Long: `Add a categorization rule.

Condition types and operators:
  description  contains
  amount       greater_than, less_than, equals, greater_than_or_equal, less_than_or_equal
  date         before, after, between, not_between
  ai           (uses --prompt, no operator)`,
		Example: `  ledger rules add --category Coffee --type description --operator contains --value "blue bottle"
  ledger rules add --category Travel --type date --operator between --value 2024-06-01 --end 2024-06-14
  ledger rules add --category Subscriptions --type ai --prompt "recurring software or streaming charges"`,
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

			ids, err := resolveCategories(ctx, store, owner, []string{category})
			if err != nil {
				return err
			}

			cond.Type = model.ConditionType(condType)
			cond.Operator = model.Operator(operator)
			if end != "" {
				cond.OptionalValue = &end
			}

			rule := &model.CategorizationRule{
				OwnerID:    owner,
				CategoryID: ids[0],
				Condition:  cond,
				Priority:   priority,
				IsActive:   !inactive,
			}
			if err := store.CreateCategorizationRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			names, err := categoryNames(ctx, store, owner)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created rule %s: %s", rule.ID, rules.Explain(*rule, names[rule.CategoryID]))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category id or name (required)")
	cmd.Flags().StringVarP(&condType, "type", "t", "", "condition type: description, amount, date, ai (required)")
	cmd.Flags().StringVarP(&operator, "operator", "o", "", "condition operator")
	cmd.Flags().StringVarP(&cond.Value, "value", "v", "", "condition value")
	cmd.Flags().StringVar(&end, "end", "", "end date for between and not_between")
	cmd.Flags().StringVar(&cond.AIPrompt, "prompt", "", "prompt for ai conditions")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "priority, lower runs first")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the rule disabled")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func setRuleActiveCmd(use, short string, active bool) *cobra.Command {
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

			rule, err := store.GetCategorizationRule(ctx, owner, args[0])
			if err != nil {
				return err
			}
			rule.IsActive = active
			if err := store.UpdateCategorizationRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to update rule: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %s %sd", rule.ID, use)))
			return nil
		},
	}
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Long:  `Delete a rule. Categories it already attached stay on their transactions.`,
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

			if err := store.DeleteCategorizationRule(ctx, owner, args[0]); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted rule "+args[0]))
			return nil
		},
	}
}

func applyRulesCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply active rules to the owner's transactions",
		Long: `Evaluate every active rule against the owner's transactions and attach
the categories of matching rules. Existing categories are never removed, so
re-running is safe. Rules mode and scope come from the rules.mode and
rules.scope settings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := handler.HandleInterrupts(cmd.Context(), "Rule application")
			defer stop()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			autoSnapshot(ctx, store, "apply")

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

			result, err := eng.ApplyRules(ctx, owner)
			if err != nil {
				if handler.WasInterrupted() {
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatApplyResult(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")

	return cmd
}
