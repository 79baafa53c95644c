package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorExposesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	c.RecordSuccess()
	c.RecordFailure("exit")
	c.RecordUnauthorized()
	c.RecordBadRequest()
	c.ObserveDuration(250 * time.Millisecond)

	srv := httptest.NewServer(Handler(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"dynupd_update_success_total 1",
		`dynupd_update_failure_total{stage="exit"} 1`,
		"dynupd_unauthorized_total 1",
		"dynupd_bad_request_total 1",
		"dynupd_update_duration_seconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
