package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tgienger/tasktrack/internal/models"
)

func TestTransportCountsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	before := testutil.ToFloat64(Requests.WithLabelValues("418", "get"))
	client := &http.Client{Transport: Transport(nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := testutil.ToFloat64(Requests.WithLabelValues("418", "get")); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}

type sink struct{ got []models.Notification }

func (s *sink) Record(n models.Notification) error {
	s.got = append(s.got, n)
	return nil
}

func TestCountingNotifier(t *testing.T) {
	s := &sink{}
	n := CountingNotifier{Next: s}
	before := testutil.ToFloat64(Notices.WithLabelValues("error"))
	if err := n.Record(models.Notification{Level: models.LevelError, Message: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(s.got) != 1 {
		t.Errorf("forwarded %d", len(s.got))
	}
	if got := testutil.ToFloat64(Notices.WithLabelValues("error")); got != before+1 {
		t.Errorf("notices = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	Notices.WithLabelValues("info").Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "tasktrack_notifications_total") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
