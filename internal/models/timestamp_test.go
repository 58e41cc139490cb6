package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		set   bool
		valid bool
		want  time.Time
	}{
		{"null", `null`, false, false, time.Time{}},
		{"empty string", `""`, false, false, time.Time{}},
		{"rfc3339", `"2024-03-15T01:00:00Z"`, true, true, time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)},
		{"space separated", `"2024-03-15 01:00:00"`, true, true, time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)},
		{"date only", `"2024-03-15"`, true, true, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"unix seconds", `1710464400`, true, true, time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)},
		{"garbage string", `"next week"`, true, false, time.Time{}},
		{"bool", `false`, true, false, time.Time{}},
		{"object", `{"date":"2024-03-15"}`, true, false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if ts.Set != tt.set || ts.Valid != tt.valid {
				t.Fatalf("Set=%v Valid=%v, want %v %v", ts.Set, ts.Valid, tt.set, tt.valid)
			}
			if tt.valid && !ts.Time.Equal(tt.want) {
				t.Errorf("Time = %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestMalformedDateKeepsOtherTasks(t *testing.T) {
	body := `[
		{"id": 1, "title": "ok", "due_date": "2024-03-15"},
		{"id": 2, "title": "broken", "due_date": false, "start_date": [1]}
	]`
	var tasks []Task
	if err := json.Unmarshal([]byte(body), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	if !tasks[0].DueDate.Valid {
		t.Error("valid due date lost")
	}
	if d := tasks[1].DueDate; !d.Set || d.Valid || d.Raw != "false" {
		t.Errorf("due_date = %+v, want set, invalid, raw false", d)
	}
	if s := tasks[1].StartDate; !s.Set || s.Valid {
		t.Errorf("start_date = %+v", s)
	}
}
