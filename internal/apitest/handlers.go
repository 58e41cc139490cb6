package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/tasktrack/internal/models"
)

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.users)
}

func (s *Server) listProjects(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.projects)
}

func (s *Server) user(id int64) *models.User {
	for i := range s.users {
		if s.users[i].ID == id {
			return &s.users[i]
		}
	}
	return nil
}

func (s *Server) project(id int64) *models.Project {
	for i := range s.projects {
		if s.projects[i].ID == id {
			return &s.projects[i]
		}
	}
	return nil
}

func (s *Server) task(id int64) *models.Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// view returns t with the nested assignee and project the backend joins in
func (s *Server) view(t *models.Task) models.Task {
	out := *t
	out.Assignee, out.Project = nil, nil
	if t.AssigneeID != nil {
		if u := s.user(*t.AssigneeID); u != nil {
			out.Assignee = u.Ref()
		}
	}
	if p := s.project(t.ProjectID); p != nil {
		out.Project = &models.ProjectRef{ID: p.ID, Name: p.Name, Category: p.Category}
	}
	return out
}

func filterValue(c *gin.Context, key string) string {
	v := strings.TrimSpace(c.Query(key))
	if v == "all" {
		return ""
	}
	return v
}

func (s *Server) listTasks(c *gin.Context) {
	status := filterValue(c, "status")
	assignee := filterValue(c, "assignee")
	project := filterValue(c, "project")
	priority := filterValue(c, "priority")
	search := filterValue(c, "search_text")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Task{}
	for _, t := range s.tasks {
		if status != "" && string(t.Status) != status {
			continue
		}
		if priority != "" && string(t.Priority) != priority {
			continue
		}
		if project != "" && strconv.FormatInt(t.ProjectID, 10) != project {
			continue
		}
		if assignee != "" && !s.assignedTo(t, assignee) {
			continue
		}
		if search != "" && !containsFold(t.Title, search) && !containsFold(t.Description, search) {
			continue
		}
		out = append(out, s.view(t))
	}
	// newest first, like the backend's ORDER BY created_at DESC
	slices.SortStableFunc(out, func(a, b models.Task) int {
		if r := b.CreatedAt.SortKey().Compare(a.CreatedAt.SortKey()); r != 0 {
			return r
		}
		return int(b.ID - a.ID)
	})
	c.JSON(http.StatusOK, out)
}

// assignedTo matches the database id or the login userID, as the backend does
func (s *Server) assignedTo(t *models.Task, who string) bool {
	if t.AssigneeID == nil {
		return false
	}
	if strconv.FormatInt(*t.AssigneeID, 10) == who {
		return true
	}
	u := s.user(*t.AssigneeID)
	return u != nil && u.UserID == who
}

func (s *Server) getTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.task(id)
	if t == nil {
		notFound(c, "Task")
		return
	}
	c.JSON(http.StatusOK, s.view(t))
}

// taskBody accepts ids as numbers or numeric strings
type taskBody struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Type        *string      `json:"type"`
	Status      *string      `json:"status"`
	Priority    *string      `json:"priority"`
	Severity    *string      `json:"severity"`
	ProjectID   *json.Number `json:"project_id"`

	// absent leaves the field alone, null clears it
	AssigneeID json.RawMessage `json:"assignee_id"`
	StartDate  json.RawMessage `json:"start_date"`
	DueDate    json.RawMessage `json:"due_date"`
}

func isNull(raw json.RawMessage) bool { return string(raw) == "null" }

func (s *Server) bindTask(c *gin.Context) (*taskBody, bool) {
	var body taskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "No data provided")
		return nil, false
	}
	return &body, true
}

// apply validates body against the reference data and copies it onto t
func (s *Server) apply(t *models.Task, body *taskBody) error {
	if body.Title != nil {
		t.Title = *body.Title
	}
	if body.Description != nil {
		t.Description = *body.Description
	}
	if body.Type != nil {
		t.Type = *body.Type
	}
	if body.Status != nil {
		st := models.Status(*body.Status)
		if !st.Valid() {
			return fmt.Errorf("Invalid status: %s", *body.Status)
		}
		t.Status = st
	}
	if body.Priority != nil {
		p := models.Priority(*body.Priority)
		if !p.Valid() {
			return fmt.Errorf("Invalid priority: %s", *body.Priority)
		}
		t.Priority = p
	}
	if body.Severity != nil {
		sev := models.Severity(*body.Severity)
		if !sev.Valid() {
			return fmt.Errorf("Invalid severity: %s", *body.Severity)
		}
		t.Severity = sev
	}
	if body.ProjectID != nil {
		pid, err := body.ProjectID.Int64()
		if err != nil || s.project(pid) == nil {
			return fmt.Errorf("Project not found: %s", body.ProjectID.String())
		}
		t.ProjectID = pid
	}
	if len(body.AssigneeID) > 0 {
		if isNull(body.AssigneeID) {
			t.AssigneeID = nil
		} else {
			var n json.Number
			if err := json.Unmarshal(body.AssigneeID, &n); err != nil {
				return fmt.Errorf("Invalid assignee_id: %s", body.AssigneeID)
			}
			aid, err := n.Int64()
			if err != nil || s.user(aid) == nil {
				return fmt.Errorf("User not found: %s", n.String())
			}
			t.AssigneeID = &aid
		}
	}
	for _, d := range []struct {
		raw json.RawMessage
		dst *models.Timestamp
	}{{body.StartDate, &t.StartDate}, {body.DueDate, &t.DueDate}} {
		if len(d.raw) == 0 {
			continue
		}
		if isNull(d.raw) {
			*d.dst = models.Timestamp{}
			continue
		}
		var in string
		if err := json.Unmarshal(d.raw, &in); err != nil {
			return fmt.Errorf("Invalid date: %s", d.raw)
		}
		ts := models.ParseTimestamp(in)
		if ts.Set && !ts.Valid {
			return fmt.Errorf("Invalid date: %s", in)
		}
		*d.dst = ts
	}
	return nil
}

func (s *Server) createTask(c *gin.Context) {
	body, ok := s.bindTask(c)
	if !ok {
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		badRequest(c, "Missing required field: title")
		return
	}
	if body.ProjectID == nil || body.ProjectID.String() == "" || body.ProjectID.String() == "0" {
		badRequest(c, "Missing required field: project_id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Task{
		Status:   models.DefaultStatus,
		Priority: models.DefaultPriority,
		Severity: models.DefaultSeverity,
	}
	if err := s.apply(t, body); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.nextTask++
	t.ID = s.nextTask
	t.CreatedAt = s.stamp()
	t.UpdatedAt = t.CreatedAt
	s.tasks = append(s.tasks, t)
	c.JSON(http.StatusCreated, s.view(t))
}

func (s *Server) updateTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, ok := s.bindTask(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.task(id)
	if t == nil {
		notFound(c, "Task")
		return
	}
	updated := *t
	if err := s.apply(&updated, body); err != nil {
		badRequest(c, err.Error())
		return
	}
	updated.UpdatedAt = s.stamp()
	*t = updated
	c.JSON(http.StatusOK, gin.H{"message": "Task updated successfully"})
}

func (s *Server) deleteTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task(id) == nil {
		notFound(c, "Task")
		return
	}
	for _, cm := range s.comments[id] {
		s.dropAttachments(cm.ID)
	}
	delete(s.comments, id)
	s.tasks = slices.DeleteFunc(s.tasks, func(t *models.Task) bool { return t.ID == id })
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (s *Server) listComments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Comment{}
	for _, cm := range s.comments[id] {
		out = append(out, *cm)
	}
	// newest first
	slices.Reverse(out)
	c.JSON(http.StatusOK, out)
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func (s *Server) addComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var (
		content string
		files   []upload
	)
	if mt, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type")); mt == "multipart/form-data" {
		form, err := c.MultipartForm()
		if err != nil {
			badRequest(c, "Malformed form data")
			return
		}
		content = c.PostForm("content")
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				badRequest(c, "Unreadable attachment")
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				badRequest(c, "Unreadable attachment")
				return
			}
			files = append(files, upload{name: path.Base(fh.Filename), contentType: fh.Header.Get("Content-Type"), data: data})
		}
	} else {
		var body struct {
			Content string `json:"content"`
		}
		_ = c.ShouldBindJSON(&body)
		content = body.Content
	}
	if strings.TrimSpace(content) == "" {
		badRequest(c, "Content is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task(id) == nil {
		notFound(c, "Task")
		return
	}
	s.nextComment++
	cm := &models.Comment{
		ID:          s.nextComment,
		TaskID:      id,
		Content:     content,
		CreatedAt:   s.stamp(),
		Attachments: []models.Attachment{},
	}
	if u := s.user(s.currentUser); u != nil {
		cm.Author = u.Ref()
	}
	for _, f := range files {
		s.nextAttach++
		a := models.Attachment{
			ID:          s.nextAttach,
			Filename:    f.name,
			DownloadURL: "/api/attachments/" + strconv.FormatInt(s.nextAttach, 10),
		}
		s.attachments[a.ID] = &attachment{Attachment: a, commentID: cm.ID, contentType: f.contentType, data: f.data}
		cm.Attachments = append(cm.Attachments, a)
	}
	s.comments[id] = append(s.comments[id], cm)
	c.JSON(http.StatusCreated, gin.H{
		"id":          cm.ID,
		"attachments": cm.Attachments,
		"message":     "Comment added successfully",
	})
}

func (s *Server) dropAttachments(commentID int64) {
	for id, a := range s.attachments {
		if a.commentID == commentID {
			delete(s.attachments, id)
		}
	}
}

func (s *Server) deleteComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for taskID, list := range s.comments {
		i := slices.IndexFunc(list, func(cm *models.Comment) bool { return cm.ID == id })
		if i < 0 {
			continue
		}
		s.dropAttachments(id)
		s.comments[taskID] = slices.Delete(list, i, i+1)
		c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
		return
	}
	notFound(c, "Comment")
}

func (s *Server) downloadAttachment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	a := s.attachments[id]
	s.mu.Unlock()
	if a == nil {
		notFound(c, "Attachment")
		return
	}
	ct := a.contentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	c.Data(http.StatusOK, ct, a.data)
}
