package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotasks/pkg/document"
)

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Project commands",
	}
	cmd.AddCommand(newProjectAddCmd(app))
	cmd.AddCommand(newProjectListCmd(app))
	cmd.AddCommand(newProjectRemoveCmd(app))
	cmd.AddCommand(newProjectMoveCmd(app))
	return cmd
}

func newProjectAddCmd(app *App) *cobra.Command {
	var colorHex, sourceRoot string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a project at the end of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			err := app.modify(func(db *document.Database) error {
				if _, _, err := findProject(db, name); err == nil {
					return fmt.Errorf("project %q already exists", name)
				}
				p := document.NewProject(name, colorHex)
				p.SourceRoot = sourceRoot
				db.Insert(document.NewProjectID(), p)
				return nil
			})
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Added project %s", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&colorHex, "color", "#61afef", "Project color (RGB hex)")
	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Directory derived tasks are collected from")
	return cmd
}

func newProjectListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return app.read(func(db *document.Database) error {
				if db.Len() == 0 {
					fmt.Fprintln(w, dimColor.Sprint("No projects"))
					return nil
				}
				i := 0
				for _, p := range db.All() {
					i++
					fmt.Fprintf(w, "%2d. %s %s  %s\n", i, nameColor.Sprint(p.Name), dimColor.Sprint(p.Color),
						dimColor.Sprintf("open %d, done %d, derived %d, tags %d",
							p.OpenTasks.Len(), p.DoneTasks.Len(), p.DerivedTasks.Len(), p.Tags.Len()))
				}
				return nil
			})
		},
	}
}

func newProjectRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <project>",
		Aliases: []string{"rm"},
		Short:   "Remove a project and all of its tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			err := app.modify(func(db *document.Database) error {
				id, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				name = p.Name
				db.Remove(id)
				return nil
			})
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Removed project %s", name)
			return nil
		},
	}
}

func newProjectMoveCmd(app *App) *cobra.Command {
	var f moveFlags

	cmd := &cobra.Command{
		Use:   "move <project>",
		Short: "Reorder a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.modify(func(db *document.Database) error {
				id, _, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				return moveEntry(db, id, f, func(ref string) (document.ProjectID, error) {
					other, _, err := findProject(db, ref)
					return other, err
				})
			})
		},
	}

	addMoveFlags(cmd, &f)
	return cmd
}

func addMoveFlags(cmd *cobra.Command, f *moveFlags) {
	cmd.Flags().BoolVar(&f.up, "up", false, "Move one position up")
	cmd.Flags().BoolVar(&f.down, "down", false, "Move one position down")
	cmd.Flags().BoolVar(&f.end, "end", false, "Move to the last position")
	cmd.Flags().IntVar(&f.to, "to", 0, "Move to this 1-based position")
	cmd.Flags().StringVar(&f.before, "before", "", "Move right before this entry")
	cmd.MarkFlagsMutuallyExclusive("up", "down", "end", "to", "before")
}
