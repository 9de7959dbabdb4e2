package main

import (
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long:  `List, add, update, and delete the owner's categories.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
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

			categories, err := store.ListCategories(ctx, owner)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No categories found. Use 'ledger categories add' to create one."))
				return nil
			}

			rows := make([][]string, 0, len(categories))
			for _, cat := range categories {
				desc := cat.Description
				if desc == "" {
					desc = cli.SubtleStyle.Render("(no description)")
				}
				rows = append(rows, []string{cat.ID, cat.Name, desc})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "Name", "Description"}, rows))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long: `Create a new category. The description is sent to the classifier
alongside ai rule prompts, so a specific one improves ai matches.`,
		Args: cobra.ExactArgs(1),
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

			category, err := store.CreateCategory(ctx, owner, args[0], description)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created category %q (ID: %s)", category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "category description")

	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "update <id-or-name>",
		Short: "Rename or redescribe a category",
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

			ids, err := resolveCategories(ctx, store, owner, args)
			if err != nil {
				return err
			}
			current, err := store.GetCategory(ctx, owner, ids[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("name") {
				name = current.Name
			}
			if !cmd.Flags().Changed("description") {
				description = current.Description
			}
			if err := store.UpdateCategory(ctx, owner, current.ID, name, description); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated category %q", name)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "new category name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new category description")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a category",
		Long:  `Delete a category. Its rules and transaction links are removed with it.`,
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

			ids, err := resolveCategories(ctx, store, owner, args)
			if err != nil {
				return err
			}
			if err := store.DeleteCategory(ctx, owner, ids[0]); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted category "+args[0]))
			return nil
		},
	}
}
