package clickup

import (
	"context"
	"fmt"
	"sync"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/report"
)

type ClickUpSource struct {
	Client *Client
	// FolderID, when set, supplies the lists on first fetch if none were
	// given explicitly.
	FolderID string

	// guards folder resolution; a failed lookup is retried on the next fetch
	resolveMu sync.Mutex
	resolved  bool
}

func NewClickUpSource(apiKey string, listIDs []string) *ClickUpSource {
	return &ClickUpSource{
		Client: NewClient(apiKey, listIDs),
	}
}

// NewClickUpFolderSource reads every list of a folder, using the list
// names as team names.
func NewClickUpFolderSource(apiKey, folderID string) *ClickUpSource {
	return &ClickUpSource{
		Client:   NewClient(apiKey, nil),
		FolderID: folderID,
	}
}

var _ report.TaskSource = (*ClickUpSource)(nil)

func (c *ClickUpSource) Name() string {
	return "ClickUp"
}

func (c *ClickUpSource) HealthCheck(ctx context.Context) error {
	return c.Client.HealthCheck(ctx)
}

// FetchTasks reads every configured list and flattens each ClickUp task
// into one record per assignee. Tasks that cannot touch the window are
// dropped here so the calculator only sees relevant work.
func (c *ClickUpSource) FetchTasks(ctx context.Context, window capacity.Window) ([]capacity.Task, error) {
	if err := c.resolveLists(ctx); err != nil {
		return nil, err
	}

	bounds := window.Bounds()

	var tasks []capacity.Task
	for _, listID := range c.Client.ListIDs() {
		clickupTasks, err := c.Client.FetchTasks(ctx, listID)
		if err != nil {
			return nil, err
		}

		for _, t := range clickupTasks {
			if !touches(t, bounds) {
				continue
			}
			tasks = append(tasks, c.convert(t, listID)...)
		}
	}

	return tasks, nil
}

func (c *ClickUpSource) resolveLists(ctx context.Context) error {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	if c.resolved || c.FolderID == "" || len(c.Client.ListIDs()) > 0 {
		return nil
	}
	ids, names, err := c.Client.GetListIDsAndNamesFromFolder(ctx, c.FolderID)
	if err != nil {
		return err
	}
	c.Client.SetListNames(names)
	c.Client.SetListIDs(ids)
	c.resolved = true
	return nil
}

func (c *ClickUpSource) convert(t ClickUpTask, listID string) []capacity.Task {
	team := t.List.Name
	if team == "" {
		team = c.Client.ListName(listID)
	}

	base := capacity.Task{
		ID:      t.ID,
		Title:   t.Name,
		Team:    team,
		Source:  c.Name(),
		Start:   deref(t.StartDate),
		Due:     deref(t.DueDate),
		Created: t.DateCreated,
	}

	if len(t.Assignees) == 0 {
		return []capacity.Task{base}
	}

	out := make([]capacity.Task, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		task := base
		task.Assignee = a.Username
		if task.Assignee == "" {
			task.Assignee = fmt.Sprintf("%d", a.ID)
		}
		out = append(out, task)
	}
	return out
}

// touches reports whether a task may overlap bounds. Missing or
// unparseable dates keep the task; the calculator decides what to do with it.
func touches(t ClickUpTask, bounds capacity.Interval) bool {
	begin := deref(t.StartDate)
	if begin == "" {
		begin = t.DateCreated
	}
	start, hasStart := capacity.ParseTimestamp(begin)
	if hasStart && !start.Before(bounds.End) {
		return false
	}

	// an inverted range is clamped to its start, so only a due date
	// before the window that also follows the start rules the task out
	due, hasDue := capacity.ParseTimestamp(deref(t.DueDate))
	if hasDue && due.Before(bounds.Start) && (!hasStart || !due.Before(start)) {
		return false
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
