package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Afrawles/capledger/internal/capacity"
)

type Generator struct {
	Sources []TaskSource
	Logger  *slog.Logger
}

func NewGenerator(logger *slog.Logger, sources ...TaskSource) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{Sources: sources, Logger: logger}
}

// Generate fetches tasks from all sources and aggregates them
func (g *Generator) Generate(ctx context.Context, window capacity.Window) ([]capacity.Task, error) {
	var all []capacity.Task
	errors := make(map[string]error)

	for _, src := range g.Sources {
		g.Logger.Info("fetching tasks", "source", src.Name(), "window", window.String())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := src.HealthCheck(ctx); err != nil {
			errors[src.Name()] = fmt.Errorf("health check failed: %w", err)
			g.Logger.Warn("source unavailable", "source", src.Name(), "error", err)
			continue
		}

		tasks, err := src.FetchTasks(ctx, window)
		if err != nil {
			errors[src.Name()] = err
			g.Logger.Error("fetch failed", "source", src.Name(), "error", err)
			continue
		}

		g.Logger.Info("tasks fetched", "source", src.Name(), "count", len(tasks))
		all = append(all, tasks...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt().After(all[j].CreatedAt())
	})

	if len(all) == 0 && len(errors) > 0 {
		return nil, fmt.Errorf("failed to fetch from all sources: %v", errors)
	}

	return all, nil
}

// Ledger fetches tasks and runs them through calc. Sources are asked for
// the span of window and calc's override windows.
func (g *Generator) Ledger(ctx context.Context, window capacity.Window, calc *capacity.Calculator) (*capacity.Ledger, error) {
	tasks, err := g.Generate(ctx, calc.Span(window))
	if err != nil {
		return nil, err
	}

	ledger := calc.Compute(tasks, window)
	for _, a := range ledger.Anomalies {
		g.Logger.Warn("task data anomaly",
			"task", a.TaskID,
			"assignee", a.Assignee,
			"kind", string(a.Kind),
			"field", a.Field,
			"value", a.Value,
		)
	}
	return ledger, nil
}

// Statistics generates summary stats
func (g *Generator) Statistics(tasks []capacity.Task) map[string]any {
	stats := make(map[string]any)

	bySource := make(map[string]int)
	byTeam := make(map[string]int)
	byAssignee := make(map[string]int)

	for _, task := range tasks {
		bySource[task.Source]++
		team := task.Team
		if team == "" {
			team = capacity.NoTeam
		}
		byTeam[team]++
		byAssignee[task.AssigneeKey()]++
	}

	stats["total"] = len(tasks)
	stats["assignees"] = len(byAssignee)
	stats["by_source"] = bySource
	stats["by_team"] = byTeam
	stats["by_assignee"] = byAssignee
	return stats
}
