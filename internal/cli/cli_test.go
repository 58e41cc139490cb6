package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/apitest"
	"github.com/tgienger/tasktrack/internal/export"
	"github.com/tgienger/tasktrack/internal/models"
)

var testNow = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

type env struct {
	url  string
	fake *apitest.Server
	dir  string
	now  time.Time
}

// newEnv starts a seeded backend and isolates config, state and journal
// paths in a temp dir.
func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("TASKTRACK_JOURNAL_PATH", filepath.Join(dir, "journal.db"))
	t.Setenv("TASKTRACK_DISPLAY_TIMEZONE", "UTC")

	fake := apitest.New(apitest.WithClock(func() time.Time { return testNow }))
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return &env{url: srv.URL, fake: fake, dir: dir, now: testNow}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWith(t, e.url, e.now, args...)
}

func runWith(t *testing.T, baseURL string, now time.Time, args ...string) (string, error) {
	t.Helper()
	app := &App{now: func() time.Time { return now }}
	cmd := newRootCmd(app)
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--base-url=" + baseURL}, args...))
	err := cmd.ExecuteContext(context.Background())
	if app.journal != nil {
		_ = app.journal.Close()
	}
	return out.String(), err
}

func mustRun(t *testing.T, e *env, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := classify(err).Code; got != code {
		t.Fatalf("code = %s, want %s (%v)", got, code, err)
	}
}

func listIDs(t *testing.T, e *env, args ...string) []int64 {
	t.Helper()
	out := mustRun(t, e, append([]string{"tasks", "list", "--json"}, args...)...)
	var recs []export.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTasksListTable(t *testing.T) {
	e := newEnv(t)
	out := mustRun(t, e, "tasks", "list", "--sort", "priority")

	if !strings.Contains(out, "TITLE") || !strings.Contains(out, "PRIORITY") {
		t.Fatalf("missing header:\n%s", out)
	}
	order := []string{"CAN timeout on cold start", "Bootloader CRC check", "Archive 2023 calibration data", "document build flags"}
	last := -1
	for _, title := range order {
		i := strings.Index(out, title)
		if i < 0 {
			t.Fatalf("%q missing:\n%s", title, out)
		}
		if i < last {
			t.Fatalf("%q out of order:\n%s", title, out)
		}
		last = i
	}
	// task 2 was due the day before testNow
	if !strings.Contains(out, " !") {
		t.Errorf("overdue marker missing:\n%s", out)
	}
}

func TestTasksListFilters(t *testing.T) {
	e := newEnv(t)

	if got := listIDs(t, e); !equalIDs(got, []int64{4, 3, 2, 1}) {
		t.Errorf("unfiltered = %v", got)
	}
	if got := listIDs(t, e, "--status", "in_progress"); !equalIDs(got, []int64{1}) {
		t.Errorf("status filter = %v", got)
	}
	if got := listIDs(t, e, "--assignee", "bsmith"); !equalIDs(got, []int64{2}) {
		t.Errorf("assignee by username = %v", got)
	}
	if got := listIDs(t, e, "--project", "toolchain"); !equalIDs(got, []int64{3}) {
		t.Errorf("project by name = %v", got)
	}
	if got := listIDs(t, e, "--sort", "due_date", "--desc"); len(got) != 4 {
		t.Errorf("sorted list = %v", got)
	}
	if got := listIDs(t, e, "-n", "2"); len(got) != 2 {
		t.Errorf("limit = %v", got)
	}

	_, err := e.run(t, "tasks", "list", "--status", "bogus")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "tasks", "list", "--assignee", "nobody")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "tasks", "list", "--sort", "color")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "tasks", "list", "--no-such-flag")
	wantCode(t, err, InvalidInput)
}

func TestTasksShow(t *testing.T) {
	e := newEnv(t)

	out := mustRun(t, e, "tasks", "show", "1")
	for _, want := range []string{"#1 Bootloader CRC check", "Comments (2)", "bench.log", "Started on the CRC table."} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, e, "tasks", "show", "1", "--json")
	var got taskJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Task.ID != 1 || len(got.Comments) != 2 {
		t.Fatalf("got %+v", got)
	}
	if a := got.Comments[0].Attachments; len(a) != 1 || a[0].Filename != "bench.log" {
		t.Errorf("newest comment attachments = %+v", a)
	}

	_, err := e.run(t, "tasks", "show", "99")
	wantCode(t, err, NotFound)
	_, err = e.run(t, "tasks", "show", "abc")
	wantCode(t, err, InvalidInput)
}

func TestTasksCreateAndUpdate(t *testing.T) {
	e := newEnv(t)

	out := mustRun(t, e, "tasks", "create", "--title", "Flash wear test", "--project", "Toolchain", "--priority", "high", "--due", "2024-03-20")
	if !strings.Contains(out, "Created task #5: Flash wear test") {
		t.Fatalf("create output %q", out)
	}
	if e.fake.TaskCount() != 5 {
		t.Fatalf("task count = %d", e.fake.TaskCount())
	}

	out = mustRun(t, e, "tasks", "update", "5", "--status", "done", "--assignee", "jdoe")
	if !strings.Contains(out, "Updated task #5") {
		t.Fatalf("update output %q", out)
	}
	if got := listIDs(t, e, "--status", "done"); !equalIDs(got, []int64{5, 4}) {
		t.Errorf("done tasks = %v", got)
	}

	_, err := e.run(t, "tasks", "update", "5")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "tasks", "create", "--title", " ", "--project", "1")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "tasks", "update", "5", "--priority", "someday")
	wantCode(t, err, InvalidInput)
}

func TestTasksDeleteNeedsConfirmation(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "tasks", "delete", "3")
	wantCode(t, err, ConfirmationReq)
	if e.fake.TaskCount() != 4 {
		t.Fatal("task deleted without confirmation")
	}

	out := mustRun(t, e, "tasks", "delete", "3", "--yes")
	if !strings.Contains(out, "Deleted task #3") {
		t.Fatalf("delete output %q", out)
	}
	if got := listIDs(t, e); !equalIDs(got, []int64{4, 2, 1}) {
		t.Errorf("after delete = %v", got)
	}

	_, err = e.run(t, "tasks", "delete", "3", "-y")
	wantCode(t, err, NotFound)
}

func TestComments(t *testing.T) {
	e := newEnv(t)
	file := filepath.Join(e.dir, "trace.csv")
	if err := os.WriteFile(file, []byte("t,v\n0,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, e, "comments", "add", "1", "Trace attached", "--file", file)
	if !strings.Contains(out, "Comment added to task #1") {
		t.Fatalf("add output %q", out)
	}

	out = mustRun(t, e, "comments", "list", "1", "--json")
	var comments []commentJSON
	if err := json.Unmarshal([]byte(out), &comments); err != nil {
		t.Fatal(err)
	}
	if len(comments) != 3 || comments[0].Content != "Trace attached" {
		t.Fatalf("comments = %+v", comments)
	}
	if a := comments[0].Attachments; len(a) != 1 || a[0].Filename != "trace.csv" {
		t.Errorf("attachments = %+v", a)
	}

	out = mustRun(t, e, "comments", "list", "3")
	if !strings.Contains(out, "No comments.") {
		t.Errorf("empty list output %q", out)
	}

	_, err := e.run(t, "comments", "add", "1", "   ")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "comments", "add", "1", "missing file", "-f", filepath.Join(e.dir, "nope.bin"))
	if err == nil {
		t.Error("missing attachment accepted")
	}

	_, err = e.run(t, "comments", "delete", "1")
	wantCode(t, err, ConfirmationReq)
	mustRun(t, e, "comments", "delete", "1", "--yes")
	out = mustRun(t, e, "comments", "list", "1")
	if strings.Contains(out, "Started on the CRC table.") {
		t.Errorf("deleted comment still listed:\n%s", out)
	}
}

func TestAttachmentsGetNeverOverwrites(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()

	for range 2 {
		out := mustRun(t, e, "attachments", "get", "1", "--dir", dir)
		if !strings.Contains(out, "bench") {
			t.Fatalf("get output %q", out)
		}
	}
	for _, name := range []string{"bench.log", "bench (1).log"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "crc ok\n" {
			t.Errorf("%s = %q", name, data)
		}
	}

	_, err := e.run(t, "attachments", "get", "42", "--dir", dir)
	wantCode(t, err, NotFound)
}

func TestExport(t *testing.T) {
	e := newEnv(t)

	jsonPath := filepath.Join(e.dir, "tasks.json")
	out := mustRun(t, e, "export", "--out", jsonPath)
	if !strings.Contains(out, "Exported 4 tasks to "+jsonPath) {
		t.Fatalf("export output %q", out)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var doc export.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Count != 4 || len(doc.Tasks) != 4 {
		t.Errorf("document = %+v", doc)
	}

	pdfPath := filepath.Join(e.dir, "todo.pdf")
	mustRun(t, e, "export", "--status", "todo", "-o", pdfPath, "--title", "Open work")
	data, err = os.ReadFile(pdfPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("not a PDF: %q", data[:min(len(data), 16)])
	}

	_, err = e.run(t, "export", "--out", filepath.Join(e.dir, "x.out"), "--format", "xml")
	wantCode(t, err, InvalidInput)
	_, err = e.run(t, "export")
	if err == nil {
		t.Error("export without --out accepted")
	}
}

func TestNotificationsJournal(t *testing.T) {
	e := newEnv(t)

	mustRun(t, e, "tasks", "delete", "4", "--yes")
	mustRun(t, e, "tasks", "create", "--title", "Retest", "--project", "2")

	out := mustRun(t, e, "notifications", "--json")
	var notes []models.Notification
	if err := json.Unmarshal([]byte(out), &notes); err != nil {
		t.Fatal(err)
	}
	var msgs []string
	for _, n := range notes {
		msgs = append(msgs, n.Message)
	}
	joined := strings.Join(msgs, "|")
	if !strings.Contains(joined, "Task deleted") || !strings.Contains(joined, "Task created") {
		t.Errorf("journal = %v", msgs)
	}

	out = mustRun(t, e, "notifications", "--level", "error")
	if !strings.Contains(out, "No notifications.") {
		t.Errorf("error level output %q", out)
	}

	_, err := e.run(t, "notifications", "--level", "loud")
	wantCode(t, err, InvalidInput)

	mustRun(t, e, "notifications", "--prune", "48h")
	if out = mustRun(t, e, "notifications"); strings.Contains(out, "No notifications.") {
		t.Fatal("prune removed entries newer than the cutoff")
	}
	e.now = testNow.Add(72 * time.Hour)
	mustRun(t, e, "notifications", "--prune", "48h")
	out = mustRun(t, e, "notifications")
	if !strings.Contains(out, "No notifications.") {
		t.Errorf("after prune:\n%s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	e := newEnv(t)
	t.Setenv("TASKTRACK_SESSION_COOKIE", "s3cret")

	out := mustRun(t, e, "config", "init")
	path := filepath.Join(e.dir, "config", "tasktrack", "config.yaml")
	if !strings.Contains(out, path) {
		t.Fatalf("init output %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	_, err := e.run(t, "config", "init")
	wantCode(t, err, InvalidInput)
	mustRun(t, e, "config", "init", "--force")

	out = mustRun(t, e, "config", "show")
	if !strings.Contains(out, "base_url: "+e.url) {
		t.Errorf("base_url missing:\n%s", out)
	}
	if strings.Contains(out, "s3cret") || !strings.Contains(out, redacted) {
		t.Errorf("cookie not redacted:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := runWith(t, "not a url", testNow, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "tasktrack dev") {
		t.Errorf("version output %q", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	newEnv(t)
	_, err := runWith(t, "ftp://example.com", testNow, "tasks", "list")
	wantCode(t, err, InvalidInput)
}

func TestBackendUnreachable(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.fake.Handler())
	url := srv.URL
	srv.Close()

	_, err := runWith(t, url, testNow, "tasks", "list")
	wantCode(t, err, Unreachable)
}

func TestBackendFailure(t *testing.T) {
	e := newEnv(t)
	e.fake.Fail("GET", "/api/tasks", 500, "database is locked")

	_, err := e.run(t, "tasks", "list")
	wantCode(t, err, BackendError)
	if !strings.Contains(classify(err).Message, "database is locked") {
		t.Errorf("message = %q", classify(err).Message)
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"nil", nil, "", 0},
		{"not found", &api.HTTPError{StatusCode: 404, Message: "Task not found"}, NotFound, 1},
		{"server", &api.HTTPError{StatusCode: 502, Message: "bad gateway"}, BackendError, 1},
		{"transport", &api.TransportError{Method: "GET", Path: "/api/tasks", Err: errors.New("refused")}, Unreachable, 1},
		{"filter", &api.FilterError{Field: "status", Value: "x"}, InvalidInput, 1},
		{"internal", errors.New("boom"), InternalError, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := report(&buf, tt.err, true); got != tt.exit {
				t.Errorf("exit = %d, want %d", got, tt.exit)
			}
			if tt.err == nil {
				if buf.Len() != 0 {
					t.Errorf("unexpected output %q", buf.String())
				}
				return
			}
			var resp errorResponse
			if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.code || resp.Error == "" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}
