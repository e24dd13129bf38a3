package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotasks/pkg/document"
)

func newTagCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tag",
		Aliases: []string{"tags"},
		Short:   "Tag commands",
	}
	cmd.AddCommand(newTagAddCmd(app))
	cmd.AddCommand(newTagListCmd(app))
	return cmd
}

func newTagAddCmd(app *App) *cobra.Command {
	var colorHex string

	cmd := &cobra.Command{
		Use:   "add <project> <name>",
		Short: "Add a tag to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				if _, _, err := findTag(p, args[1]); err == nil {
					return fmt.Errorf("tag %q already exists in %s", args[1], p.Name)
				}
				p.Tags.Insert(document.NewTagID(), &document.Tag{Name: args[1], Color: colorHex})
				return nil
			})
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Added tag %s", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&colorHex, "color", "#e5c07b", "Tag color (RGB hex)")
	return cmd
}

func newTagListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List the tags of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return app.read(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				for _, t := range p.Tags.All() {
					fmt.Fprintf(w, "#%s %s\n", nameColor.Sprint(t.Name), dimColor.Sprint(t.Color))
				}
				return nil
			})
		},
	}
}
