package models

import "time"

// Category groups projects (product or function)
type Category struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Project is read-only reference data used for filtering and assignment
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Category    *Category `json:"category,omitempty"`
}

// ProjectRef is the project summary embedded in task responses
type ProjectRef struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Category *Category `json:"category,omitempty"`
}

// User is a backend account. Title decides whether the user can be an assignee.
type User struct {
	ID       int64  `json:"id"`
	UserID   string `json:"userID,omitempty"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role,omitempty"`
	Title    string `json:"title,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// AdminTitle marks the system account that is never offered as an assignee
const AdminTitle = "System Administrator"

// Assignable reports whether the user may be picked as a task assignee
func (u User) Assignable() bool {
	if u.IsActive != nil && !*u.IsActive {
		return false
	}
	return u.Title != AdminTitle
}

// Ref converts the user into the shape embedded in tasks and comments
func (u User) Ref() *UserRef {
	return &UserRef{ID: u.ID, UserID: u.UserID, Username: u.Username, FullName: u.FullName}
}

// UserRef is the user summary embedded in task and comment responses
type UserRef struct {
	ID       int64  `json:"id"`
	UserID   string `json:"userID,omitempty"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// DisplayName is the full name, falling back to the username.
// Empty when neither is known.
func (u *UserRef) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Task is a trackable work item
type Task struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Status      Status      `json:"status"`
	Priority    Priority    `json:"priority"`
	Severity    Severity    `json:"severity"`
	ProjectID   int64       `json:"project_id"`
	AssigneeID  *int64      `json:"assignee_id"`
	StartDate   Timestamp   `json:"start_date"`
	DueDate     Timestamp   `json:"due_date"`
	CreatedAt   Timestamp   `json:"created_at"`
	UpdatedAt   Timestamp   `json:"updated_at"`
	Assignee    *UserRef    `json:"assignee,omitempty"`
	Project     *ProjectRef `json:"project,omitempty"`
}

// ProjectName returns the embedded project name, or "" when absent
func (t Task) ProjectName() string {
	if t.Project == nil {
		return ""
	}
	return t.Project.Name
}

// AssigneeName returns the embedded assignee's display name, or ""
func (t Task) AssigneeName() string {
	return t.Assignee.DisplayName()
}

// Attachment is a file uploaded with a comment
type Attachment struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// Comment is a note on a task, optionally with attachments
type Comment struct {
	ID          int64        `json:"id"`
	TaskID      int64        `json:"task_id,omitempty"`
	Content     string       `json:"content"`
	CreatedAt   Timestamp    `json:"created_at"`
	Author      *UserRef     `json:"author,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Level is the severity of a user-facing notification
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is a message surfaced to the user after an operation
type Notification struct {
	ID        int64     `json:"id"`
	Level     Level     `json:"level"`
	Op        string    `json:"op,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
