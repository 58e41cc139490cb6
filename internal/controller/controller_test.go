package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/apitest"
	"github.com/tgienger/tasktrack/internal/models"
)

type memNotifier struct{ got []models.Notification }

func (m *memNotifier) Record(n models.Notification) error {
	m.got = append(m.got, n)
	return nil
}

type harness struct {
	c    *Controller
	fake *apitest.Server
	note *memNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := apitest.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	note := &memNotifier{}
	c := New(client, Options{
		Notifier: note,
		Location: time.FixedZone("UTC+8", 8*3600),
		Now:      func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) },
	})
	return &harness{c: c, fake: fake, note: note}
}

func (h *harness) run(t *testing.T, ops ...Op) []models.Notification {
	t.Helper()
	notices, _ := h.c.Run(context.Background(), ops...)
	return notices
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	if _, err := h.c.Run(context.Background(), h.c.LoadReferenceData(), h.c.LoadTasks(api.TaskFilter{})); err != nil {
		t.Fatalf("initial load: %v", err)
	}
}

func ids(tasks []models.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestLoadTasksKeepsServerOrder(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	// newest first
	if got, want := ids(h.c.Tasks()), []int64{4, 3, 2, 1}; !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if h.c.Loading() || h.c.TasksError() != "" {
		t.Errorf("loading=%v err=%q", h.c.Loading(), h.c.TasksError())
	}
	if n := len(h.c.Assignees()); n != 2 {
		t.Errorf("assignees = %d, want 2", n)
	}
}

func TestSortByRankTables(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.c.SortBy(SortPriority, Ascending)
	var got []models.Priority
	for _, task := range h.c.Tasks() {
		got = append(got, task.Priority)
	}
	want := []models.Priority{models.PriorityUrgent, models.PriorityHigh, models.PriorityMedium, models.PriorityLow}
	if !slices.Equal(got, want) {
		t.Errorf("priority order = %v, want %v", got, want)
	}

	h.c.SortBy(SortStatus, Ascending)
	var statuses []models.Status
	for _, task := range h.c.Tasks() {
		statuses = append(statuses, task.Status)
	}
	if !slices.Equal(statuses, models.Statuses) {
		t.Errorf("status order = %v, want %v", statuses, models.Statuses)
	}
}

func TestSortTitleCaseInsensitive(t *testing.T) {
	tasks := []models.Task{{ID: 1, Title: "beta"}, {ID: 2, Title: "Alpha"}, {ID: 3, Title: "alpha"}}
	SortTasks(tasks, Sort{Field: SortTitle})
	if got := ids(tasks); !slices.Equal(got, []int64{2, 3, 1}) {
		t.Errorf("order = %v (ties must keep input order)", got)
	}
}

func TestSortDueDateMissingIsEpoch(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, DueDate: models.ParseTimestamp("2024-05-01")},
		{ID: 2},
		{ID: 3, DueDate: models.ParseTimestamp("not a date")},
		{ID: 4, DueDate: models.ParseTimestamp("1960-01-01")},
	}
	SortTasks(tasks, Sort{Field: SortDueDate})
	if got := ids(tasks); !slices.Equal(got, []int64{4, 2, 3, 1}) {
		t.Errorf("order = %v", got)
	}
}

func TestSortAbsentValuesCompareAsEmpty(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, Assignee: &models.UserRef{FullName: "Zed"}},
		{ID: 2},
		{ID: 3, Project: &models.ProjectRef{Name: "A"}},
	}
	SortTasks(tasks, Sort{Field: SortAssignee})
	if got := ids(tasks); !slices.Equal(got, []int64{2, 3, 1}) {
		t.Errorf("assignee order = %v", got)
	}
	SortTasks(tasks, Sort{Field: SortProject})
	if got := ids(tasks); !slices.Equal(got, []int64{2, 1, 3}) {
		t.Errorf("project order = %v", got)
	}
}

func TestToggleSortTwiceRestoresOrder(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.c.ToggleSort(SortTitle)
	asc := ids(h.c.Tasks())
	h.c.ToggleSort(SortTitle)
	if h.c.Sort().Direction != Descending {
		t.Fatalf("direction = %v", h.c.Sort().Direction)
	}
	desc := ids(h.c.Tasks())
	if !slices.Equal(desc, []int64{3, 2, 1, 4}) {
		t.Errorf("desc = %v", desc)
	}
	h.c.ToggleSort(SortTitle)
	if got := ids(h.c.Tasks()); !slices.Equal(got, asc) {
		t.Errorf("toggle twice = %v, want %v", got, asc)
	}
}

func TestSortSurvivesReload(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.c.SortBy(SortPriority, Descending)
	h.run(t, h.c.Refresh())
	if got := ids(h.c.Tasks()); !slices.Equal(got, []int64{3, 4, 1, 2}) {
		t.Errorf("order after reload = %v", got)
	}
}

func TestStaleTaskLoadDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	older := h.c.LoadTasks(api.TaskFilter{Status: "done"})
	newer := h.c.LoadTasks(api.TaskFilter{Status: "todo"})

	newEv := newer(ctx)
	oldEv := older(ctx)
	if out := h.c.Apply(newEv); out.Action != ActionTasksLoaded {
		t.Fatalf("newer action = %v", out.Action)
	}
	if out := h.c.Apply(oldEv); out.Action != ActionStale {
		t.Fatalf("older action = %v, want stale", out.Action)
	}
	if got := ids(h.c.Tasks()); !slices.Equal(got, []int64{2}) {
		t.Errorf("tasks = %v, want only the todo task", got)
	}
	if h.c.Filters().Status != "todo" {
		t.Errorf("filters = %+v", h.c.Filters())
	}
}

func TestLoadFailureEmptiesCollection(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.Fail(http.MethodGet, "/api/tasks", http.StatusInternalServerError, "database is locked")
	notices := h.run(t, h.c.Refresh())
	if len(h.c.Tasks()) != 0 {
		t.Errorf("tasks not cleared: %v", ids(h.c.Tasks()))
	}
	if h.c.TasksError() != "database is locked" {
		t.Errorf("TasksError = %q", h.c.TasksError())
	}
	if len(notices) != 1 || notices[0].Level != models.LevelError || notices[0].Message != "Failed to load tasks: database is locked" {
		t.Errorf("notices = %+v", notices)
	}
	if len(h.note.got) == 0 {
		t.Error("notifier not called")
	}
}

func TestReferenceFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail(http.MethodGet, "/api/users", http.StatusInternalServerError, "boom")
	notices, err := h.c.Run(context.Background(), h.c.LoadReferenceData(), h.c.LoadTasks(api.TaskFilter{}))
	if err == nil {
		t.Error("expected reference error reported")
	}
	if len(h.c.Users()) != 0 || len(h.c.Projects()) != 3 {
		t.Errorf("users=%d projects=%d", len(h.c.Users()), len(h.c.Projects()))
	}
	if len(h.c.Tasks()) != 4 {
		t.Errorf("tasks = %d", len(h.c.Tasks()))
	}
	if len(notices) != 1 || notices[0].Op != "load users" {
		t.Errorf("notices = %+v", notices)
	}
}

func TestSetFilterRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	op, err := h.c.SetFilter(FilterAssignee, "jdoe")
	if op != nil || err == nil {
		t.Fatalf("op=%v err=%v", op != nil, err)
	}
	if len(h.fake.Requests()) != 0 {
		t.Error("request issued for invalid filter")
	}
	if n, ok := h.c.LastNotice(); !ok || n.Level != models.LevelWarn {
		t.Errorf("last notice = %+v", n)
	}

	op, err = h.c.SetFilter(FilterProject, "2")
	if err != nil {
		t.Fatal(err)
	}
	h.run(t, op)
	if got := ids(h.c.Tasks()); !slices.Equal(got, []int64{2}) {
		t.Errorf("project filter = %v", got)
	}
	h.run(t, h.c.ClearFilters())
	if len(h.c.Tasks()) != 4 || h.c.Filters().Active() != 0 {
		t.Errorf("after clear: %d tasks, %d filters", len(h.c.Tasks()), h.c.Filters().Active())
	}
}

func TestResetFiltersKeepsBase(t *testing.T) {
	h := newHarness(t)
	h.run(t, h.c.LoadTasks(api.TaskFilter{Project: "1", Status: "done"}))
	h.c.SearchInput("crc")

	h.run(t, h.c.ResetFilters(api.TaskFilter{Project: "1"}))
	if f := h.c.Filters(); f.Project != "1" || f.Active() != 1 {
		t.Errorf("filters = %+v", f)
	}
	if got := ids(h.c.Tasks()); !slices.Equal(got, []int64{4, 1}) {
		t.Errorf("tasks = %v, want [4 1]", got)
	}
}

func TestSearchDebounceOnlyLatestGeneration(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.ResetRequests()

	g1, delay := h.c.SearchInput("c")
	if delay != DefaultSearchDelay {
		t.Errorf("delay = %v", delay)
	}
	g2, _ := h.c.SearchInput("ca")
	g3, _ := h.c.SearchInput("can")

	if h.c.SearchSettled(g1) != nil || h.c.SearchSettled(g2) != nil {
		t.Fatal("superseded generation issued a load")
	}
	op := h.c.SearchSettled(g3)
	if op == nil {
		t.Fatal("latest generation issued nothing")
	}
	h.run(t, op)
	reqs := h.fake.RequestsTo(http.MethodGet, "/api/tasks")
	if len(reqs) != 1 || reqs[0].RawQuery != "search_text=can" {
		t.Errorf("requests = %+v", reqs)
	}
	if got := ids(h.c.Tasks()); !slices.Equal(got, []int64{2}) {
		t.Errorf("search result = %v", got)
	}
	if h.c.SearchSettled(g3) != nil {
		t.Error("unchanged search reissued")
	}
}

func TestSelectTaskTogglesDetail(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	ops := h.c.SelectTask(1)
	if len(ops) != 2 {
		t.Fatalf("select issued %d ops", len(ops))
	}
	h.run(t, ops...)
	id, visible := h.c.Selection()
	if id != 1 || !visible {
		t.Fatalf("selection = %d %v", id, visible)
	}
	if task, ok := h.c.SelectedTask(); !ok || task.Description == "" {
		t.Errorf("detail not loaded: %+v", task)
	}
	if len(h.c.Comments()) != 2 {
		t.Errorf("comments = %d", len(h.c.Comments()))
	}

	if ops := h.c.SelectTask(1); ops != nil {
		t.Error("same-id select fetched again")
	}
	if _, visible := h.c.Selection(); visible {
		t.Error("detail still visible after toggle")
	}
	h.c.SelectTask(1)
	if _, visible := h.c.Selection(); !visible {
		t.Error("detail hidden after second toggle")
	}

	if ops := h.c.SelectTask(42); ops != nil {
		t.Error("selecting unknown task fetched")
	}
}

func TestStaleCommentsDiscardedOnReselect(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	ctx := context.Background()
	first := h.c.SelectTask(1)
	second := h.c.SelectTask(2)

	evOld := first[1](ctx)
	if out := h.c.Apply(evOld); out.Action != ActionStale {
		t.Errorf("old comments action = %v", out.Action)
	}
	h.run(t, second...)
	if len(h.c.Comments()) != 0 {
		t.Errorf("comments of task 1 leaked into task 2: %+v", h.c.Comments())
	}
}

func TestSelectionDroppedWhenFilteredOut(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.run(t, h.c.SelectTask(1)...)
	op, _ := h.c.SetFilter(FilterStatus, "todo")
	h.run(t, op)
	if id, visible := h.c.Selection(); id != 0 || visible {
		t.Errorf("selection = %d %v after filtering it out", id, visible)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.run(t, h.c.SelectTask(2)...)

	p := h.c.RequestDeleteTask(2)
	if p.Kind != ConfirmDeleteTask || h.fake.TaskCount() != 4 {
		t.Fatalf("pending = %+v, tasks = %d", p, h.fake.TaskCount())
	}
	h.c.Cancel()
	if h.c.Confirm() != nil {
		t.Fatal("confirm after cancel returned an op")
	}
	if len(h.fake.RequestsTo(http.MethodDelete, "/api/tasks/2")) != 0 {
		t.Fatal("DELETE sent without confirmation")
	}

	h.c.RequestDeleteTask(2)
	h.run(t, h.c.Confirm())
	if slices.Contains(ids(h.c.Tasks()), 2) {
		t.Error("row not removed")
	}
	if id, visible := h.c.Selection(); id != 0 || visible {
		t.Errorf("selection not cleared: %d %v", id, visible)
	}
	if _, ok := h.c.SelectedTask(); ok {
		t.Error("detail still present")
	}
}

func TestDeleteUnselectedKeepsSelection(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.run(t, h.c.SelectTask(1)...)
	h.c.RequestDeleteTask(3)
	h.run(t, h.c.Confirm())
	if id, _ := h.c.Selection(); id != 1 {
		t.Errorf("selection = %d", id)
	}
}

func TestDeleteFailureSurfacesServerMessage(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.Fail(http.MethodDelete, "/api/tasks/1", http.StatusForbidden, "Only managers can delete tasks")
	h.c.RequestDeleteTask(1)
	notices, err := h.c.Run(context.Background(), h.c.Confirm())
	if err == nil || len(notices) != 1 || notices[0].Message != "Failed to delete task: Only managers can delete tasks" {
		t.Errorf("notices = %+v err = %v", notices, err)
	}
	if !slices.Contains(ids(h.c.Tasks()), 1) {
		t.Error("row removed despite failure")
	}
}

func TestCreateWithoutProjectRejectedClientSide(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.ResetRequests()

	f := h.c.OpenCreate()
	f.Title = "Something"
	op, err := h.c.SubmitForm(f)
	var ve *ValidationError
	if op != nil || !errors.As(err, &ve) || ve.Field != "project_id" {
		t.Fatalf("op=%v err=%v", op != nil, err)
	}
	if len(h.fake.Requests()) != 0 {
		t.Error("request sent for invalid form")
	}
	if h.c.Form() == nil {
		t.Error("form closed on validation failure")
	}

	f.Title = "  "
	f.ProjectID = "1"
	if _, err := h.c.SubmitForm(f); !errors.As(err, &ve) || ve.Field != "title" {
		t.Errorf("blank title err = %v", err)
	}
}

func TestCreateTaskReloadsAndCloses(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	f := h.c.OpenCreate()
	f.Title = "Calibrate sensor"
	f.ProjectID = "3"
	f.AssigneeID = "3"
	f.DueDate = "2024-03-10"
	op, err := h.c.SubmitForm(f)
	if err != nil {
		t.Fatal(err)
	}
	notices := h.run(t, op)
	if h.c.Form() != nil {
		t.Error("form still open")
	}
	if len(h.c.Tasks()) != 5 {
		t.Errorf("tasks = %d, want 5 after reload", len(h.c.Tasks()))
	}
	if len(notices) == 0 || notices[0].Message != "Task created" {
		t.Errorf("notices = %+v", notices)
	}
	created := h.c.Tasks()[0]
	// entered in UTC+8
	if want := time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC); !created.DueDate.Time.Equal(want) {
		t.Errorf("due = %v, want %v", created.DueDate.Time, want)
	}
	if created.Status != models.DefaultStatus || created.Priority != models.DefaultPriority {
		t.Errorf("defaults = %s %s", created.Status, created.Priority)
	}
}

func TestEditSelectedTaskRefreshesDetail(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.run(t, h.c.SelectTask(1)...)

	h.run(t, h.c.OpenEdit(1))
	f := h.c.Form()
	if f == nil || f.Loading || f.Title != "Bootloader CRC check" || f.ProjectID != "1" || f.AssigneeID != "2" {
		t.Fatalf("form = %+v", f)
	}
	if f.DueDate != "2024-03-15 09:00" {
		t.Errorf("due date in display zone = %q", f.DueDate)
	}
	f.Title = "Bootloader CRC32 check"
	f.AssigneeID = ""
	op, err := h.c.SubmitForm(f)
	if err != nil {
		t.Fatal(err)
	}
	h.fake.ResetRequests()
	h.run(t, op)

	if len(h.fake.RequestsTo(http.MethodGet, "/api/tasks/1")) != 1 {
		t.Error("detail not refreshed after editing the selected task")
	}
	task, _ := h.c.SelectedTask()
	if task.Title != "Bootloader CRC32 check" || task.AssigneeID != nil {
		t.Errorf("detail = %+v", task)
	}
}

func TestEditFormLoadFailureCloses(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.Fail(http.MethodGet, "/api/tasks/1", http.StatusInternalServerError, "nope")
	h.run(t, h.c.OpenEdit(1))
	if h.c.Form() != nil {
		t.Error("form open after failed load")
	}
}

func TestDueBeforeStartRejected(t *testing.T) {
	f := NewTaskForm()
	f.Title, f.ProjectID = "x", "1"
	f.StartDate, f.DueDate = "2024-03-10", "2024-03-01"
	_, err := f.Normalize(time.UTC)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "due_date" {
		t.Errorf("err = %v", err)
	}
	f.DueDate = "03/01/2024"
	if _, err := f.Normalize(time.UTC); !errors.As(err, &ve) || ve.Field != "due_date" {
		t.Errorf("bad format err = %v", err)
	}
}

func TestNormalizeCoercesIDsAndDates(t *testing.T) {
	f := NewTaskForm()
	f.Title, f.ProjectID, f.AssigneeID = " t ", " 2 ", "3"
	f.StartDate = "2024-03-01 08:30"
	in, err := f.Normalize(time.FixedZone("UTC+8", 8*3600))
	if err != nil {
		t.Fatal(err)
	}
	if in.Title != "t" || in.ProjectID != 2 || in.AssigneeID == nil || *in.AssigneeID != 3 {
		t.Errorf("input = %+v", in)
	}
	if in.StartDate == nil || *in.StartDate != "2024-03-01T00:30:00Z" {
		t.Errorf("start = %v", in.StartDate)
	}
	if in.DueDate != nil {
		t.Errorf("due = %v, want nil", *in.DueDate)
	}
}

func TestAddCommentRejectsEmpty(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.fake.ResetRequests()
	op, err := h.c.AddComment(1, "  \n\t", nil)
	if op != nil || err == nil {
		t.Fatal("empty comment accepted")
	}
	if len(h.fake.Requests()) != 0 {
		t.Error("request sent for empty comment")
	}
}

func TestAddCommentClearsDraftAndReloads(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.run(t, h.c.SelectTask(3)...)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	h.c.SetCommentDraft("see attached", []string{path})
	op, err := h.c.AddComment(3, "see attached", []string{path})
	if err != nil {
		t.Fatal(err)
	}
	h.run(t, op)

	if text, files := h.c.CommentDraft(); text != "" || files != nil {
		t.Errorf("draft = %q %v", text, files)
	}
	comments := h.c.Comments()
	if len(comments) != 1 || len(comments[0].Attachments) != 1 || comments[0].Attachments[0].Filename != "notes.txt" {
		t.Fatalf("comments = %+v", comments)
	}
	if req := h.fake.RequestsTo(http.MethodPost, "/api/tasks/3/comments"); len(req) != 1 || req[0].ContentType != "multipart/form-data" {
		t.Errorf("comment request = %+v", req)
	}

	dir := t.TempDir()
	notices := h.run(t, h.c.DownloadAttachment(comments[0].Attachments[0].ID, dir))
	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("downloaded %q, %v (notices %+v)", data, err, notices)
	}
	h.run(t, h.c.DownloadAttachment(comments[0].Attachments[0].ID, dir))
	if _, err := os.Stat(filepath.Join(dir, "notes (1).txt")); err != nil {
		t.Errorf("second download overwrote: %v", err)
	}
}

func TestAddCommentMissingFileKeepsDraft(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	op, err := h.c.AddComment(1, "with file", []string{"/does/not/exist"})
	if err != nil {
		t.Fatal(err)
	}
	_, runErr := h.c.Run(context.Background(), op)
	if runErr == nil {
		t.Fatal("expected error for missing attachment")
	}
	if text, _ := h.c.CommentDraft(); text != "with file" {
		t.Errorf("draft lost: %q", text)
	}
	if len(h.fake.RequestsTo(http.MethodPost, "/api/tasks/1/comments")) != 0 {
		t.Error("request sent despite unreadable attachment")
	}
}

func TestDeleteCommentReloadsSelected(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.run(t, h.c.SelectTask(1)...)
	h.c.RequestDeleteComment(2)
	if h.c.Pending() == nil {
		t.Fatal("no pending confirmation")
	}
	h.run(t, h.c.Confirm())
	if h.c.Pending() != nil {
		t.Error("confirmation not cleared")
	}
	if len(h.c.Comments()) != 1 || h.c.Comments()[0].ID != 1 {
		t.Errorf("comments = %+v", h.c.Comments())
	}
}

func TestNoticeHistoryBounded(t *testing.T) {
	c := New(nil, Options{})
	for i := 0; i < maxNotices+10; i++ {
		c.report(c.notice(models.LevelInfo, "x", "y"))
	}
	if len(c.Notices()) != maxNotices {
		t.Errorf("history = %d", len(c.Notices()))
	}
}
