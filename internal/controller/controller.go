// Package controller owns the task list state: the loaded tasks, sort and
// filter state, the selection, the edit form and pending confirmations.
//
// Network work is split in two halves. An Op performs I/O and may run on any
// goroutine; the Event it returns must be handed back to Apply on the goroutine
// that owns the Controller. Apply mutates state, discards responses older than
// the latest request for the same operation, and returns follow-up Ops.
package controller

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/models"
)

// Backend is the subset of the REST client the controller uses
type Backend interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListTasks(ctx context.Context, f api.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	CreateTask(ctx context.Context, in api.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, in api.TaskInput) error
	DeleteTask(ctx context.Context, id int64) error
	ListComments(ctx context.Context, taskID int64) ([]models.Comment, error)
	AddComment(ctx context.Context, taskID int64, content string, uploads []api.Upload) error
	DeleteComment(ctx context.Context, id int64) error
	DownloadAttachment(ctx context.Context, id int64, w io.Writer) (string, error)
}

// Notifier records user-facing notifications, e.g. in the journal
type Notifier interface {
	Record(n models.Notification) error
}

// Op is one network round trip. It only reads data captured when it was created.
type Op func(ctx context.Context) Event

// Event is the result of an Op, applied with Controller.Apply
type Event interface {
	apply(c *Controller) Outcome
}

// Action tells the host what an applied event did
type Action int

const (
	ActionNone Action = iota
	ActionStale
	ActionReferenceLoaded
	ActionTasksLoaded
	ActionDetailLoaded
	ActionCommentsLoaded
	ActionFormLoaded
	ActionTaskSaved
	ActionTaskDeleted
	ActionCommentAdded
	ActionCommentDeleted
	ActionAttachmentSaved
)

// Outcome is what applying an event produced
type Outcome struct {
	Action  Action
	Err     error
	Notices []models.Notification
	Next    []Op
}

// Options configure a Controller
type Options struct {
	Logger      *slog.Logger
	Notifier    Notifier
	Location    *time.Location
	SearchDelay time.Duration
	Now         func() time.Time
}

// DefaultSearchDelay is the debounce applied to free-text search input
const DefaultSearchDelay = 300 * time.Millisecond

const maxNotices = 100

// sequences holds the latest request number per logical operation
type sequences struct {
	tasks    uint64
	detail   uint64
	comments uint64
	form     uint64
}

// Controller is the task list controller. It is not safe for concurrent use;
// only Ops may leave the owning goroutine.
type Controller struct {
	backend  Backend
	log      *slog.Logger
	notifier Notifier
	loc      *time.Location
	now      func() time.Time

	users    []models.User
	projects []models.Project

	// source is the server order, tasks the sorted view of it
	source       []models.Task
	tasks        []models.Task
	tasksErr     string
	loadingTasks bool
	filters      api.TaskFilter
	sort         Sort

	selectedID    int64
	detailVisible bool
	detail        *models.Task
	comments      []models.Comment
	commentsErr   string
	commentDraft  string
	commentFiles  []string

	form    *TaskForm
	pending *Confirmation

	searchGen     uint64
	pendingSearch string
	searchDelay   time.Duration

	seq     sequences
	notices []models.Notification
}

// New creates a controller over backend
func New(backend Backend, opts Options) *Controller {
	c := &Controller{
		backend:     backend,
		log:         opts.Logger,
		notifier:    opts.Notifier,
		loc:         opts.Location,
		now:         opts.Now,
		searchDelay: opts.SearchDelay,
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.searchDelay <= 0 {
		c.searchDelay = DefaultSearchDelay
	}
	return c
}

// Apply folds an event into the controller state
func (c *Controller) Apply(ev Event) Outcome {
	if ev == nil {
		return Outcome{}
	}
	out := ev.apply(c)
	for i := range out.Notices {
		out.Notices[i] = c.report(out.Notices[i])
	}
	return out
}

// Run executes ops and every follow-up op on the calling goroutine.
// It returns the notices raised and the first error encountered.
func (c *Controller) Run(ctx context.Context, ops ...Op) ([]models.Notification, error) {
	var (
		notices  []models.Notification
		firstErr error
	)
	queue := append([]Op(nil), ops...)
	for len(queue) > 0 {
		op := queue[0]
		queue = queue[1:]
		if op == nil {
			continue
		}
		out := c.Apply(op(ctx))
		notices = append(notices, out.Notices...)
		if out.Err != nil && firstErr == nil {
			firstErr = out.Err
		}
		queue = append(queue, out.Next...)
	}
	return notices, firstErr
}

func (c *Controller) notice(level models.Level, op, msg string) models.Notification {
	return models.Notification{Level: level, Op: op, Message: msg}
}

func (c *Controller) failure(op string, err error) models.Notification {
	c.log.Error("operation failed", "op", op, "error", err)
	return c.notice(models.LevelError, op, "Failed to "+op+": "+api.Message(err))
}

// report stamps, logs, journals and remembers a notification
func (c *Controller) report(n models.Notification) models.Notification {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}
	c.log.Debug("notice", "level", string(n.Level), "op", n.Op, "message", n.Message)
	if c.notifier != nil {
		if err := c.notifier.Record(n); err != nil {
			c.log.Warn("journal write failed", "error", err)
		}
	}
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
	return n
}

// LastNotice returns the most recent notification
func (c *Controller) LastNotice() (models.Notification, bool) {
	if len(c.notices) == 0 {
		return models.Notification{}, false
	}
	return c.notices[len(c.notices)-1], true
}

// Notices returns the notifications raised since the controller was created, oldest first
func (c *Controller) Notices() []models.Notification { return c.notices }

// Location is the zone dates are displayed and entered in
func (c *Controller) Location() *time.Location { return c.loc }

// SetLocation changes the display zone
func (c *Controller) SetLocation(loc *time.Location) {
	if loc != nil {
		c.loc = loc
	}
}

// SetSearchDelay changes the search debounce
func (c *Controller) SetSearchDelay(d time.Duration) {
	if d > 0 {
		c.searchDelay = d
	}
}
