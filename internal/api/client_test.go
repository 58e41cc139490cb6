package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/apitest"
	"github.com/tgienger/tasktrack/internal/models"
)

func newClient(t *testing.T, opts ...api.Option) (*api.Client, *apitest.Server) {
	t.Helper()
	fake := apitest.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return c, fake
}

func TestNewRejectsBadScheme(t *testing.T) {
	if _, err := api.New("ftp://example.com"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
	c, err := api.New("http://localhost:5000/")
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != "http://localhost:5000" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestListTasksNestedShapes(t *testing.T) {
	c, fake := newClient(t)
	tasks, err := c.ListTasks(context.Background(), api.TaskFilter{Assignee: "2"})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.AssigneeName() != "Jane Doe" {
			t.Errorf("task %d assignee = %q", task.ID, task.AssigneeName())
		}
		if task.Project == nil || task.Project.Category == nil {
			t.Errorf("task %d missing nested project/category", task.ID)
		}
	}
	reqs := fake.RequestsTo(http.MethodGet, "/api/tasks")
	if len(reqs) != 1 || reqs[0].RawQuery != "assignee=2" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestListTasksRejectsInvalidFilterWithoutRequest(t *testing.T) {
	c, fake := newClient(t)
	_, err := c.ListTasks(context.Background(), api.TaskFilter{Assignee: "jdoe"})
	var fe *api.FilterError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FilterError", err)
	}
	if n := len(fake.Requests()); n != 0 {
		t.Errorf("%d requests sent", n)
	}
}

func TestHTTPErrorCarriesServerMessage(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.GetTask(context.Background(), 999)
	var he *api.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if he.StatusCode != http.StatusNotFound || he.Message != "Task not found" {
		t.Errorf("got %d %q", he.StatusCode, he.Message)
	}
	if !api.IsNotFound(err) {
		t.Error("IsNotFound false")
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	c, fake := newClient(t)
	fake.FailRaw(http.MethodGet, "/api/users", http.StatusBadGateway, "text/html", "<html>Bad Gateway</html>\n")
	_, err := c.ListUsers(context.Background())
	if got := api.Message(err); got != "<html>Bad Gateway</html>" {
		t.Errorf("Message = %q", got)
	}
}

func TestNonJSONSuccessIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()
	c, _ := api.New(srv.URL)
	_, err := c.ListProjects(context.Background())
	var de *api.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DecodeError", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, _ := api.New(url)
	_, err := c.ListUsers(context.Background())
	var te *api.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestTimeout(t *testing.T) {
	c, fake := newClient(t, api.WithTimeout(50*time.Millisecond))
	release := fake.Hold(http.MethodGet, "/api/projects")
	defer release()
	_, err := c.ListProjects(context.Background())
	var te *api.TransportError
	if !errors.As(err, &te) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline TransportError", err)
	}
}

func TestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()
	c, _ := api.New(srv.URL, api.WithSessionCookie("session=abc"))
	if _, err := c.ListUsers(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got.Get("Cookie") != "session=abc" {
		t.Errorf("Cookie = %q", got.Get("Cookie"))
	}
	if got.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}
}

func TestCreateUpdateDeleteTask(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	due := "2024-04-01T00:00:00Z"
	created, err := c.CreateTask(ctx, api.TaskInput{
		Title:     "New",
		Type:      "bug",
		Status:    models.StatusTodo,
		Priority:  models.PriorityHigh,
		Severity:  models.SeverityMinor,
		ProjectID: apitest.PumpProjectID,
		DueDate:   &due,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.ID == 0 || created.ProjectName() != "HR18" {
		t.Errorf("created = %+v", created)
	}

	body := fake.RequestsTo(http.MethodPost, "/api/tasks")[0].Body
	var sent map[string]any
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatal(err)
	}
	if sent["project_id"] != float64(apitest.PumpProjectID) || sent["assignee_id"] != nil {
		t.Errorf("sent body = %s", body)
	}

	assignee := apitest.BobID
	err = c.UpdateTask(ctx, created.ID, api.TaskInput{
		Title: "Renamed", Type: "bug", Status: models.StatusDone, Priority: models.PriorityLow,
		Severity: models.SeverityMinor, ProjectID: apitest.PumpProjectID, AssigneeID: &assignee,
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, err := c.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" || got.Status != models.StatusDone || got.AssigneeName() != "bsmith" {
		t.Errorf("after update = %+v", got)
	}
	if got.DueDate.Set {
		t.Errorf("null due_date did not clear: %+v", got.DueDate)
	}

	if err := c.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := c.GetTask(ctx, created.ID); !api.IsNotFound(err) {
		t.Errorf("GetTask after delete = %v", err)
	}
}

func TestAddCommentJSONWithoutAttachments(t *testing.T) {
	c, fake := newClient(t)
	if err := c.AddComment(context.Background(), 2, "hello", nil); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	req := fake.RequestsTo(http.MethodPost, "/api/tasks/2/comments")[0]
	if req.ContentType != "application/json" {
		t.Errorf("content type = %q", req.ContentType)
	}
	comments, err := c.ListComments(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Content != "hello" || comments[0].TaskID != 2 {
		t.Errorf("comments = %+v", comments)
	}
}

func TestAddCommentMultipartWithAttachments(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	uploads := []api.Upload{
		{Filename: "/tmp/trace.txt", Content: strings.NewReader("trace")},
		{Filename: "dump.bin", Content: bytes.NewReader([]byte{0, 1, 2})},
	}
	if err := c.AddComment(ctx, 3, "see files", uploads); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	req := fake.RequestsTo(http.MethodPost, "/api/tasks/3/comments")[0]
	if req.ContentType != "multipart/form-data" {
		t.Errorf("content type = %q", req.ContentType)
	}

	comments, err := c.ListComments(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || len(comments[0].Attachments) != 2 {
		t.Fatalf("comments = %+v", comments)
	}
	att := comments[0].Attachments[0]
	if att.Filename != "trace.txt" {
		t.Errorf("filename = %q", att.Filename)
	}

	var buf bytes.Buffer
	name, err := c.DownloadAttachment(ctx, att.ID, &buf)
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	if name != "trace.txt" || buf.String() != "trace" {
		t.Errorf("download = %q %q", name, buf.String())
	}
}

func TestDeleteComment(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	if err := c.DeleteComment(ctx, 2); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	comments, _ := c.ListComments(ctx, 1)
	if len(comments) != 1 || comments[0].ID != 1 {
		t.Errorf("comments after delete = %+v", comments)
	}
	var buf bytes.Buffer
	if _, err := c.DownloadAttachment(ctx, 1, &buf); !api.IsNotFound(err) {
		t.Errorf("attachment survived comment delete: %v", err)
	}
	if err := c.DeleteComment(ctx, 2); !api.IsNotFound(err) {
		t.Errorf("second delete = %v", err)
	}
}

func TestReferenceData(t *testing.T) {
	c, _ := newClient(t)
	users, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var assignable int
	for _, u := range users {
		if u.Assignable() {
			assignable++
		}
	}
	if assignable != 2 {
		t.Errorf("assignable users = %d, want 2 (admin and inactive excluded)", assignable)
	}
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 3 || projects[0].Category.Name != "E-Compressor" {
		t.Errorf("projects = %+v", projects)
	}
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

func TestDownloadAttachmentLargerThanBufferCap(t *testing.T) {
	const size = 17 << 20
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="big.bin"`)
		chunk := bytes.Repeat([]byte{0xAB}, 1<<20)
		for range size / len(chunk) {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	var w countingWriter
	name, err := c.DownloadAttachment(context.Background(), 9, &w)
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	if name != "big.bin" || w.n != size {
		t.Errorf("got %q with %d bytes, want big.bin with %d", name, w.n, size)
	}
}

func TestOversizedJSONBodyIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("["))
		_, _ = w.Write(bytes.Repeat([]byte(" "), 17<<20))
		_, _ = w.Write([]byte("]"))
	}))
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ListUsers(context.Background())
	var de *api.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DecodeError", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDownloadWriteFailureIsNotTransportError(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.DownloadAttachment(context.Background(), 1, failingWriter{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v", err)
	}
	var te *api.TransportError
	if errors.As(err, &te) {
		t.Errorf("write failure reported as transport error: %v", err)
	}
}
