package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"contentfactory/internal/api"
	"contentfactory/internal/ipc"
	"contentfactory/internal/testsupport"
)

func offlineClient(t *testing.T) *ipc.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	return ipc.NewClient(addr, "")
}

func TestPIDRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	path := PIDPath(cfg)
	if filepath.Dir(path) != cfg.Paths.DataDir {
		t.Fatalf("pid path %s outside data dir", path)
	}
	if pid, err := ReadPID(path); err != nil || pid != 0 {
		t.Fatalf("missing pid file: pid=%d err=%v", pid, err)
	}
	if err := WritePID(path); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	pid, err := ReadPID(path)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("abc\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadPID(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ForceKillProcess(path, "", 0); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("pid file should remain: %v", err)
	}
}

func TestStopWhenDaemonOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := Stop(context.Background(), offlineClient(t), cfg, time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestEnsureStartedAlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 77})
	}))
	defer srv.Close()

	res, err := EnsureStarted(context.Background(), ipc.NewClient(srv.URL, ""), "/nonexistent/contentfactory", LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if res.State != StartStateAlreadyRunning || res.Launched || res.PID != 77 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEnsureStartedPropagatesAuthErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := EnsureStarted(context.Background(), ipc.NewClient(srv.URL, "bad"), "/nonexistent/contentfactory", LaunchOptions{}, time.Second); err == nil {
		t.Fatal("expected auth error")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable")
	}
}

func TestBuildSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	snap, err := BuildSnapshot(context.Background(), offlineClient(t), cfg)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	if snap.Running || snap.Status != nil {
		t.Fatalf("expected offline snapshot: %+v", snap)
	}
	if len(snap.Checks) == 0 || len(snap.Integrations) == 0 {
		t.Fatalf("expected local checks: %+v", snap)
	}
}
