package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/models"
)

// Selection returns the selected task id (0 for none) and whether the detail panel is shown
func (c *Controller) Selection() (int64, bool) { return c.selectedID, c.detailVisible }

// SelectTask selects a task and fetches its detail and comments. Selecting the
// already selected task only toggles the detail panel.
func (c *Controller) SelectTask(id int64) []Op {
	if id != 0 && id == c.selectedID {
		c.detailVisible = !c.detailVisible
		return nil
	}
	if c.indexOf(id) < 0 {
		return nil
	}
	c.selectedID = id
	c.detailVisible = true
	c.detail = nil
	c.comments = nil
	c.commentsErr = ""
	return []Op{c.fetchDetail(id), c.fetchComments(id)}
}

// ClearSelection deselects and hides the detail panel
func (c *Controller) ClearSelection() {
	c.selectedID = 0
	c.detailVisible = false
	c.detail = nil
	c.comments = nil
	c.commentsErr = ""
	c.seq.detail++
	c.seq.comments++
}

// RefreshDetail refetches detail and comments of the selected task
func (c *Controller) RefreshDetail() []Op {
	if c.selectedID == 0 {
		return nil
	}
	return []Op{c.fetchDetail(c.selectedID), c.fetchComments(c.selectedID)}
}

// SelectedTask is the full record of the selected task, falling back to its list row
func (c *Controller) SelectedTask() (models.Task, bool) {
	if c.selectedID == 0 {
		return models.Task{}, false
	}
	if c.detail != nil && c.detail.ID == c.selectedID {
		return *c.detail, true
	}
	return c.Task(c.selectedID)
}

// reconcileSelection drops a selection that no longer references a loaded task
func (c *Controller) reconcileSelection() {
	if c.selectedID != 0 && c.indexOf(c.selectedID) < 0 {
		c.ClearSelection()
	}
}

type detailLoaded struct {
	seq  uint64
	id   int64
	task *models.Task
	err  error
}

func (e detailLoaded) apply(c *Controller) Outcome {
	if e.seq != c.seq.detail || e.id != c.selectedID {
		return Outcome{Action: ActionStale}
	}
	if e.err != nil {
		c.detail = nil
		return Outcome{Action: ActionDetailLoaded, Err: e.err, Notices: []models.Notification{c.failure("load task details", e.err)}}
	}
	t := c.hydrateOne(*e.task)
	c.detail = &t
	return Outcome{Action: ActionDetailLoaded}
}

func (c *Controller) fetchDetail(id int64) Op {
	c.seq.detail++
	seq := c.seq.detail
	b := c.backend
	return func(ctx context.Context) Event {
		t, err := b.GetTask(ctx, id)
		return detailLoaded{seq: seq, id: id, task: t, err: err}
	}
}

type commentsLoaded struct {
	seq      uint64
	taskID   int64
	comments []models.Comment
	err      error
}

func (e commentsLoaded) apply(c *Controller) Outcome {
	if e.seq != c.seq.comments || e.taskID != c.selectedID {
		return Outcome{Action: ActionStale}
	}
	if e.err != nil {
		c.comments = nil
		c.commentsErr = api.Message(e.err)
		return Outcome{Action: ActionCommentsLoaded, Err: e.err, Notices: []models.Notification{c.failure("load comments", e.err)}}
	}
	c.comments = e.comments
	c.commentsErr = ""
	return Outcome{Action: ActionCommentsLoaded}
}

func (c *Controller) fetchComments(taskID int64) Op {
	c.seq.comments++
	seq := c.seq.comments
	b := c.backend
	return func(ctx context.Context) Event {
		comments, err := b.ListComments(ctx, taskID)
		return commentsLoaded{seq: seq, taskID: taskID, comments: comments, err: err}
	}
}

// LoadComments refetches the comments of the selected task
func (c *Controller) LoadComments() Op {
	if c.selectedID == 0 {
		return nil
	}
	return c.fetchComments(c.selectedID)
}

// Comments returns the comments of the selected task
func (c *Controller) Comments() []models.Comment { return c.comments }

// CommentsError is the message of the last failed comment load
func (c *Controller) CommentsError() string { return c.commentsErr }

// Comment looks up a loaded comment by id
func (c *Controller) Comment(id int64) (models.Comment, bool) {
	for _, cm := range c.comments {
		if cm.ID == id {
			return cm, true
		}
	}
	return models.Comment{}, false
}

// SetCommentDraft stores the comment being typed and the files to attach
func (c *Controller) SetCommentDraft(text string, files []string) {
	c.commentDraft = text
	c.commentFiles = files
}

// CommentDraft returns the unsent comment text and attachment paths
func (c *Controller) CommentDraft() (string, []string) { return c.commentDraft, c.commentFiles }

type commentAdded struct {
	taskID int64
	err    error
}

func (e commentAdded) apply(c *Controller) Outcome {
	if e.err != nil {
		return Outcome{Action: ActionCommentAdded, Err: e.err, Notices: []models.Notification{c.failure("add comment", e.err)}}
	}
	c.commentDraft = ""
	c.commentFiles = nil
	out := Outcome{
		Action:  ActionCommentAdded,
		Notices: []models.Notification{c.notice(models.LevelInfo, "add comment", "Comment added")},
	}
	if e.taskID == c.selectedID {
		out.Next = []Op{c.fetchComments(e.taskID)}
	}
	return out
}

// AddComment posts a comment on taskID. Blank text is rejected without a
// request. Files are local paths sent as multipart attachments.
func (c *Controller) AddComment(taskID int64, text string, files []string) (Op, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		err := &ValidationError{Field: "content", Message: "Comment cannot be empty"}
		c.report(c.notice(models.LevelWarn, "add comment", err.Message))
		return nil, err
	}
	c.commentDraft = text
	c.commentFiles = files
	b := c.backend
	paths := append([]string(nil), files...)
	return func(ctx context.Context) Event {
		uploads, closeAll, err := openUploads(paths)
		if err != nil {
			return commentAdded{taskID: taskID, err: err}
		}
		defer closeAll()
		return commentAdded{taskID: taskID, err: b.AddComment(ctx, taskID, content, uploads)}
	}, nil
}

func openUploads(paths []string) ([]api.Upload, func(), error) {
	var (
		uploads []api.Upload
		files   []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open attachment: %w", err)
		}
		files = append(files, f)
		uploads = append(uploads, api.Upload{Filename: filepath.Base(p), Content: f})
	}
	return uploads, closeAll, nil
}

type commentDeleted struct {
	id  int64
	err error
}

func (e commentDeleted) apply(c *Controller) Outcome {
	if e.err != nil {
		return Outcome{Action: ActionCommentDeleted, Err: e.err, Notices: []models.Notification{c.failure("delete comment", e.err)}}
	}
	out := Outcome{
		Action:  ActionCommentDeleted,
		Notices: []models.Notification{c.notice(models.LevelInfo, "delete comment", "Comment deleted")},
	}
	if c.selectedID != 0 {
		out.Next = []Op{c.fetchComments(c.selectedID)}
	}
	return out
}

type attachmentSaved struct {
	path string
	err  error
}

func (e attachmentSaved) apply(c *Controller) Outcome {
	if e.err != nil {
		return Outcome{Action: ActionAttachmentSaved, Err: e.err, Notices: []models.Notification{c.failure("download attachment", e.err)}}
	}
	return Outcome{
		Action:  ActionAttachmentSaved,
		Notices: []models.Notification{c.notice(models.LevelInfo, "download attachment", "Saved "+e.path)},
	}
}

// DownloadAttachment saves an attachment into dir under the server's filename.
// An existing file is never overwritten; a numeric suffix is added instead.
func (c *Controller) DownloadAttachment(id int64, dir string) Op {
	b := c.backend
	return func(ctx context.Context) Event {
		path, err := downloadTo(ctx, b, id, dir)
		return attachmentSaved{path: path, err: err}
	}
}

func downloadTo(ctx context.Context, b Backend, id int64, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, ".attachment-*")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	name, err := b.DownloadAttachment(ctx, id, tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	dest := uniquePath(filepath.Join(dir, filepath.Base(name)))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save attachment: %w", err)
	}
	return dest, nil
}

func uniquePath(p string) string {
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return p
	}
	ext := filepath.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
