package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var (
	tasksHistory int
	tasksJSON    bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List scheduled background tasks",
	Long: `Lists the rebuild and cache purge tasks the scheduler keeps while
"serve" or "mcp serve --scheduler" runs, with their next run and recent results.`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().IntVar(&tasksHistory, "history", 3, "recent results shown per task")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Scheduler == nil {
		return errors.New("scheduler not configured")
	}

	tasks, err := svc.Scheduler.Tasks(commandContext(cmd), tasksHistory)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if tasksJSON {
		return printJSON(cmd, tasks)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks yet. They are registered the first time the scheduler runs.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for i, ts := range tasks {
		if i > 0 {
			cmd.Println()
		}
		printTask(cmd, st, ts)
	}
	return nil
}

func printTask(cmd *cobra.Command, st *styles, ts domain.TaskStatus) {
	t := ts.Task
	state := st.yesNo(t.Enabled, "enabled", "disabled")
	if ts.Running {
		state = st.warning.Render("running")
	}
	cmd.Printf("%s %s  every %s\n", st.title.Render(t.ID), state, t.Interval)
	cmd.Println(st.muted.Render("  " + t.Name))
	next := "due"
	if !t.NextRun.IsZero() {
		next = t.NextRun.Format(time.RFC3339)
	}
	cmd.Printf("  next run:     %s\n", next)
	cmd.Printf("  last success: %s\n", formatWhen(t.LastSuccess))
	if t.LastError != "" {
		cmd.Printf("  last error:   %s\n", st.failure.Render(truncate(t.LastError, 80)))
	}
	for _, r := range ts.Recent {
		line := fmt.Sprintf("  %s %s %s", r.StartedAt.Format(time.RFC3339),
			st.yesNo(r.Success, "ok    ", "failed"), r.Duration().Round(time.Millisecond))
		if r.Outcome != "" {
			line += fmt.Sprintf(" %s", r.Outcome)
		}
		if r.GenerationID > 0 {
			line += fmt.Sprintf(" gen %d", r.GenerationID)
		}
		line += fmt.Sprintf(" (%d rows)", r.RowsIndexed)
		cmd.Println(line)
	}
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
