package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dynupd/internal/auth"
	"dynupd/internal/config"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	capture := filepath.Join(t.TempDir(), "stdin.txt")
	data := fmt.Sprintf(`rate_limit:
  disabled: true
update_program:
  bin: "/bin/sh"
  args: ["-c", "cat > %s"]
  initial_stdin: "server 127.0.0.1\n"
  stdin_per_zone_update: "send\n"
  final_stdin: "quit\n"
  ipv4:
    stdin: "update delete {domain} A\nupdate add {domain} {ttl} A {ipv4}\n"
  ipv6:
    stdin: "update delete {domain} AAAA\nupdate add {domain} {ttl} AAAA {ipv6}\n"
users:
  - username: alice
    hash: %q
    domains:
      - name: example.org
        ttl: 60
        ipv6_prefix_len: 48
        ipv6_suffix: "0:0:0:1::5"
`, capture, auth.HashPassword("s3cret"))

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mux, err := NewMux(cfg)
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, capture
}

func TestServerUpdateEndToEnd(t *testing.T) {
	srv, capture := newTestServer(t)

	q := url.Values{}
	q.Set("user", "alice")
	q.Set("pass", "s3cret")
	q.Set("ipv4", "2.3.4.5")
	q.Set("ipv6", "2:3:4:5:6:7:8:9")

	resp, err := http.Get(srv.URL + "/update?" + q.Encode())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %q", resp.StatusCode, body)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	got, err := os.ReadFile(capture)
	if err != nil {
		t.Fatal(err)
	}
	want := "server 127.0.0.1\n" +
		"update delete example.org A\n" +
		"update add example.org 60 A 2.3.4.5\n" +
		"update delete example.org AAAA\n" +
		"update add example.org 60 AAAA 2:3:4:1::5\n" +
		"send\n" +
		"quit\n"
	if string(got) != want {
		t.Errorf("stdin script:\n%q\nwant:\n%q", got, want)
	}
}

func TestServerRejectsBadCredentials(t *testing.T) {
	srv, capture := newTestServer(t)

	resp, err := http.Get(srv.URL + "/update?user=alice&pass=wrong&ipv4=2.3.4.5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Not authorized") {
		t.Errorf("body = %q, want Not authorized", body)
	}
	if _, statErr := os.Stat(capture); !os.IsNotExist(statErr) {
		t.Error("update program was spawned for a rejected login")
	}
}

func TestServerHealthAndMetricsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "dynupd_") {
		t.Error("/metrics output missing dynupd metrics")
	}
}
