package report

import (
	"context"

	"github.com/Afrawles/capledger/internal/capacity"
)

// TaskSource is anything that can deliver task records for a window:
// a tracker API, a spreadsheet export, a fixture.
type TaskSource interface {
	Name() string
	FetchTasks(ctx context.Context, window capacity.Window) ([]capacity.Task, error)
	HealthCheck(ctx context.Context) error
}
