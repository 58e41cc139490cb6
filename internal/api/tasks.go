package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tgienger/tasktrack/internal/models"
)

// TaskInput is the create/update body. Nil optional fields are sent as null,
// which clears them on update.
type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Status      models.Status   `json:"status"`
	Priority    models.Priority `json:"priority"`
	Severity    models.Severity `json:"severity"`
	ProjectID   int64           `json:"project_id"`
	AssigneeID  *int64          `json:"assignee_id"`
	StartDate   *string         `json:"start_date"`
	DueDate     *string         `json:"due_date"`
}

func taskPath(id int64) string {
	return "/api/tasks/" + strconv.FormatInt(id, 10)
}

// ListTasks fetches the tasks matching f
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var tasks []models.Task
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/tasks", rawQuery: f.Query()}, &tasks)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, request{method: http.MethodGet, path: taskPath(id)}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask creates a task and returns the stored record
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var t models.Task
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/tasks",
		body:        body,
		contentType: "application/json",
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask replaces the editable fields of a task. The backend may answer
// with the updated task or with only a message, so the body is not decoded.
func (c *Client) UpdateTask(ctx context.Context, id int64, in TaskInput) error {
	body, err := jsonBody(in)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		method:      http.MethodPut,
		path:        taskPath(id),
		body:        body,
		contentType: "application/json",
	}, nil)
}

// DeleteTask deletes a task with its comments
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: taskPath(id)}, nil)
}
