package tasks

import "context"

// ScheduledTaskFunc is the signature of every scheduled task.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names, as used under scheduler.tasks in the configuration.
const (
	SQLMaintenanceTask = "sql_maintenance"
	StagingSweepTask   = "staging_sweep"
)

// RegisterAllTasks returns the available tasks keyed by name. The staging
// sweep is only registered when a staging area is wired in.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks[SQLMaintenanceTask] = newSQLMaintenanceTask(deps)
	if deps.Staging != nil {
		tasks[StagingSweepTask] = newStagingSweepTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
