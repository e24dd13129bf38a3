package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotasks/pkg/document"
)

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Task commands",
	}
	cmd.AddCommand(newTaskAddCmd(app))
	cmd.AddCommand(newTaskListCmd(app))
	cmd.AddCommand(newTaskDoneCmd(app))
	cmd.AddCommand(newTaskReopenCmd(app))
	cmd.AddCommand(newTaskMoveCmd(app))
	cmd.AddCommand(newTaskStartCmd(app))
	cmd.AddCommand(newTaskStopCmd(app))
	return cmd
}

// parseDue accepts a date (YYYY-MM-DD, noon UTC) or an RFC 3339 instant.
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

func newTaskAddCmd(app *App) *cobra.Command {
	var (
		description string
		due         string
		tags        []string
		review      bool
	)

	cmd := &cobra.Command{
		Use:   "add <project> <name>",
		Short: "Add an open task at the end of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := document.NewTask(args[1])
			t.Description = description
			t.NeedsReview = review
			if due != "" {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				t.Due = &d
			}

			var project string
			err := app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				for _, ref := range tags {
					id, _, err := findTag(p, ref)
					if err != nil {
						return err
					}
					t.Tags = append(t.Tags, id)
				}
				p.OpenTasks.Insert(document.NewTaskID(), t)
				project = p.Name
				return nil
			})
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Added task %s to %s", t.Name, project)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag name (repeatable)")
	cmd.Flags().BoolVar(&review, "review", false, "Mark the task as needing review")
	return cmd
}

func newTaskListCmd(app *App) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List the tasks of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCategory(category)
			if err != nil {
				return err
			}
			return app.read(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				printTasks(cmd.OutOrStdout(), p, c, app.Now())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "open", "open, done or derived")
	return cmd
}

func printTasks(w io.Writer, p *document.Project, c document.Category, now time.Time) {
	tasks := p.Tasks(c)
	if tasks.Len() == 0 {
		fmt.Fprintln(w, dimColor.Sprintf("No %s tasks in %s", c, p.Name))
		return
	}

	i := 0
	for _, t := range tasks.All() {
		i++
		line := fmt.Sprintf("%2d. %s", i, nameColor.Sprint(t.Name))

		var names []string
		for _, id := range t.Tags {
			if tag, ok := p.Tags.Get(id); ok {
				names = append(names, "#"+tag.Name)
			}
		}
		if len(names) > 0 {
			line += " " + dimColor.Sprint(strings.Join(names, " "))
		}
		if t.Due != nil {
			due := t.Due.Format(time.DateOnly)
			if c == document.CategoryOpen && t.Due.Before(now) {
				line += " " + errorColor.Sprint("due "+due)
			} else {
				line += " " + dimColor.Sprint("due "+due)
			}
		}
		if t.NeedsReview {
			line += " " + warnColor.Sprint("review")
		}
		if spent := t.TotalTimeSpent(now); spent > 0 {
			line += " " + dimColor.Sprint(spent.Truncate(time.Second))
		}
		if t.TrackingSince != nil {
			line += " " + okColor.Sprint("tracking")
		}
		fmt.Fprintln(w, line)
		if t.Description != "" {
			fmt.Fprintln(w, "    "+dimColor.Sprint(t.Description))
		}
	}
}

func newTaskDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <project> <task>",
		Short: "Move an open task to the done tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			err := app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				id, t, err := findTask(p, document.CategoryOpen, args[1])
				if err != nil {
					return err
				}
				t.StopTracking(app.Now())
				p.CompleteTask(id)
				name = t.Name
				return nil
			})
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Completed %s", name)
			return nil
		},
	}
}

func newTaskReopenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <project> <task>",
		Short: "Move a done task back to the open tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				id, _, err := findTask(p, document.CategoryDone, args[1])
				if err != nil {
					return err
				}
				p.ReopenTask(id)
				return nil
			})
		},
	}
}

func newTaskMoveCmd(app *App) *cobra.Command {
	var (
		f        moveFlags
		category string
	)

	cmd := &cobra.Command{
		Use:   "move <project> <task>",
		Short: "Reorder a task within its category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCategory(category)
			if err != nil {
				return err
			}
			return app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				id, _, err := findTask(p, c, args[1])
				if err != nil {
					return err
				}
				return moveEntry(p.Tasks(c), id, f, func(ref string) (document.TaskID, error) {
					other, _, err := findTask(p, c, ref)
					return other, err
				})
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "open", "open, done or derived")
	addMoveFlags(cmd, &f)
	return cmd
}

func newTaskStartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <project> <task>",
		Short: "Start tracking time on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				t, err := findAnyTask(p, args[1])
				if err != nil {
					return err
				}
				if t.TrackingSince != nil {
					return fmt.Errorf("already tracking %q since %s", t.Name, t.TrackingSince.Local().Format(time.Kitchen))
				}
				t.StartTracking(app.Now())
				return nil
			})
		},
	}
}

func newTaskStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <project> <task>",
		Short: "Stop tracking time on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spent time.Duration
			err := app.modify(func(db *document.Database) error {
				_, p, err := findProject(db, args[0])
				if err != nil {
					return err
				}
				t, err := findAnyTask(p, args[1])
				if err != nil {
					return err
				}
				if t.TrackingSince == nil {
					return fmt.Errorf("%q is not being tracked", t.Name)
				}
				t.StopTracking(app.Now())
				spent = t.TimeSpent
				return nil
			})
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Total time spent: %s", spent.Truncate(time.Second))
			return nil
		},
	}
}
