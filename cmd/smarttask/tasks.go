package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TWRT/smarttask/internal/models"
	"github.com/TWRT/smarttask/internal/service"
)

func listCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with a status summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			filter, err := service.ParseFilter(status)
			if err != nil {
				return err
			}
			if err := a.shell.SetFilter(filter); err != nil {
				return err
			}

			fmt.Fprintln(a.out, renderStats(a.shell.Stats()))
			tasks := a.shell.Filtered()
			if len(tasks) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("No tasks found."))
				return nil
			}
			for _, t := range tasks {
				fmt.Fprintln(a.out, renderCard(t))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "all", "filter by status (all, not_started, in_progress, done, blocked)")
	return cmd
}

type taskFlags struct {
	title       string
	description string
	status      string
	priority    string
	start       string
	end         string
	ai          bool
	image       string
}

func (f *taskFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.title, "title", "t", "", "task title")
	fs.StringVarP(&f.description, "description", "d", "", "task description")
	fs.StringVar(&f.status, "status", "", "not_started, in_progress, done or blocked")
	fs.StringVar(&f.priority, "priority", "", "low, medium, high or urgent")
	fs.StringVar(&f.start, "start", "", "start time, YYYY-MM-DDTHH:MM in local time")
	fs.StringVar(&f.end, "end", "", "end time, YYYY-MM-DDTHH:MM in local time")
	fs.BoolVar(&f.ai, "ai", false, "ask the AI assistant for priority, subtasks and tips")
	fs.StringVar(&f.image, "image", "", "attach an image file")
}

// apply copies the flags the user actually set into the form.
func (f *taskFlags) apply(fs *pflag.FlagSet, form *service.TaskForm) error {
	var (
		status   models.Status
		priority models.Priority
		err      error
	)
	if fs.Changed("status") {
		if status, err = models.ParseStatus(f.status); err != nil {
			return err
		}
	}
	if fs.Changed("priority") {
		if priority, err = models.ParsePriority(f.priority); err != nil {
			return err
		}
	}

	form.Update(func(v *service.FormValues) {
		if fs.Changed("title") {
			v.Title = f.title
		}
		if fs.Changed("description") {
			v.Description = f.description
		}
		if fs.Changed("status") {
			v.Status = status
		}
		if fs.Changed("priority") {
			v.Priority = priority
		}
		if fs.Changed("start") {
			v.StartTime = f.start
		}
		if fs.Changed("end") {
			v.EndTime = f.end
		}
	})
	return nil
}

func (a *app) runForm(cmd *cobra.Command, flags *taskFlags, existing *models.Task) error {
	ctx := cmd.Context()
	form := service.NewTaskForm(a.formDeps(), existing, a.now())
	if err := flags.apply(cmd.Flags(), form); err != nil {
		return err
	}

	if flags.ai {
		switch {
		case !a.advisor.Enabled():
			fmt.Fprintln(a.out, warnStyle.Render("AI assistant is not configured, skipping."))
		case form.RequestAdvice(ctx):
			fmt.Fprintln(a.out, okStyle.Render("AI suggestions applied."))
		default:
			fmt.Fprintln(a.out, warnStyle.Render("AI assistant did not answer, keeping your values."))
		}
	}

	if flags.image != "" {
		data, err := os.ReadFile(flags.image)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		if _, err := form.UploadAttachment(ctx, filepath.Base(flags.image), data, http.DetectContentType(data)); err != nil {
			return err
		}
	}

	patch, err := form.Submit()
	if err != nil {
		return err
	}
	task, err := a.shell.Save(ctx, form.EditingID(), patch)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, renderCard(task))
	return nil
}

func addCmd(a *app) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			return a.runForm(cmd, &flags, nil)
		},
	}
	flags.register(cmd.Flags())
	cmd.MarkFlagRequired("title")
	return cmd
}

func editCmd(a *app) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.findTask(args[0])
			if err != nil {
				return err
			}
			return a.runForm(cmd, &flags, &task)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func doneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between done and not started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.findTask(args[0])
			if err != nil {
				return err
			}
			updated, err := a.shell.ToggleDone(cmd.Context(), task.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderCard(updated))
			return nil
		},
	}
}

func rmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.findTask(args[0])
			if err != nil {
				return err
			}
			if err := a.shell.Delete(cmd.Context(), task.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %q.\n", task.Title)
			return nil
		},
	}
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push every loaded task back to the server in one batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.shell.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Synced %d tasks.\n", len(a.shell.Tasks()))
			return nil
		},
	}
}

func summaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Ask the AI assistant for a workload overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, containerStyle.Render(a.shell.Summary(cmd.Context())))
			return nil
		},
	}
}

func shareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "share [id]",
		Short: "Print the app link, or a shareable text for one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(a.out, a.cfg.App.BaseURL)
				return nil
			}
			task, err := a.findTask(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, shareText(task, a.now().Location()))
			return nil
		},
	}
}
