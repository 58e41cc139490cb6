package controller

import (
	"context"
	"fmt"
	"slices"

	"github.com/tgienger/tasktrack/internal/models"
)

// ConfirmKind is the destructive action awaiting confirmation
type ConfirmKind int

const (
	ConfirmDeleteTask ConfirmKind = iota + 1
	ConfirmDeleteComment
)

// Confirmation is a pending destructive action
type Confirmation struct {
	Kind   ConfirmKind
	ID     int64
	Prompt string
}

// Pending returns the confirmation awaiting an answer
func (c *Controller) Pending() *Confirmation { return c.pending }

// RequestDeleteTask asks for confirmation before deleting a task
func (c *Controller) RequestDeleteTask(id int64) *Confirmation {
	prompt := fmt.Sprintf("Delete task #%d?", id)
	if t, ok := c.Task(id); ok {
		prompt = fmt.Sprintf("Delete task %q? Its comments are deleted too.", t.Title)
	}
	c.pending = &Confirmation{Kind: ConfirmDeleteTask, ID: id, Prompt: prompt}
	return c.pending
}

// RequestDeleteComment asks for confirmation before deleting a comment
func (c *Controller) RequestDeleteComment(id int64) *Confirmation {
	c.pending = &Confirmation{Kind: ConfirmDeleteComment, ID: id, Prompt: "Delete this comment?"}
	return c.pending
}

// Cancel drops the pending confirmation
func (c *Controller) Cancel() { c.pending = nil }

// Confirm runs the pending action. Nil when nothing is pending.
func (c *Controller) Confirm() Op {
	p := c.pending
	c.pending = nil
	if p == nil {
		return nil
	}
	b := c.backend
	id := p.ID
	switch p.Kind {
	case ConfirmDeleteTask:
		return func(ctx context.Context) Event {
			return taskDeleted{id: id, err: b.DeleteTask(ctx, id)}
		}
	case ConfirmDeleteComment:
		return func(ctx context.Context) Event {
			return commentDeleted{id: id, err: b.DeleteComment(ctx, id)}
		}
	}
	return nil
}

type taskDeleted struct {
	id  int64
	err error
}

func (e taskDeleted) apply(c *Controller) Outcome {
	if e.err != nil {
		return Outcome{Action: ActionTaskDeleted, Err: e.err, Notices: []models.Notification{c.failure("delete task", e.err)}}
	}
	drop := func(t models.Task) bool { return t.ID == e.id }
	c.source = slices.DeleteFunc(c.source, drop)
	c.tasks = slices.DeleteFunc(c.tasks, drop)
	if c.selectedID == e.id {
		c.ClearSelection()
	}
	if c.form != nil && c.form.Mode == FormEdit && c.form.TaskID == e.id {
		c.CloseForm()
	}
	return Outcome{
		Action:  ActionTaskDeleted,
		Notices: []models.Notification{c.notice(models.LevelInfo, "delete task", "Task deleted")},
	}
}
