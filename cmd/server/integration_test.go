package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nicktill/energyview/pkg/client"
	"github.com/nicktill/energyview/pkg/config"
)

const archiveFixture = `
topology:
  nodes: [A]
  periods: [0]
k_means_specs:
  Period0:
    sequence: [1, 1, 2, 2]
operation:
  energy_balance:
    Period0:
      A:
        electricity:
          demand: [10, 20]
`

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return fmt.Sprint(l.Addr().(*net.TCPAddr).Port)
}

// TestE2E_LoadAndExport starts the server with a BadgerDB cache, loads a
// clustered archive and exports its expanded energy balance.
func TestE2E_LoadAndExport(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(archivePath, []byte(archiveFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.CacheDir = filepath.Join(dir, "cache")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run returned %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Error("server did not stop")
		}
	}()

	base := "http://127.0.0.1:" + cfg.Port
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/v1/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server not ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	body := strings.NewReader(fmt.Sprintf(`{"path": %q}`, archivePath))
	resp, err := http.Post(base+"/v1/sessions", "application/json", body)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, b)
	}
	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	resp, err = http.Get(base + "/v1/sessions/" + session.ID + "/export/energy_balance")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	want := "Period0/A/electricity/demand\n10\n10\n20\n20\n"
	if string(out) != want {
		t.Errorf("export = %q, want %q", out, want)
	}

	// The same session through the Go client.
	c, err := client.New(client.ClientConfig{Endpoint: base})
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := c.Sessions(ctx)
	if err != nil || len(sessions) != 1 || sessions[0].ID != session.ID {
		t.Fatalf("sessions = %+v, %v", sessions, err)
	}
	data, err := c.Query(ctx, session.ID, `sum by (Day) (energy_balance)`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if data.TotalRows != 1 || data.Rows[0][1] != "60" {
		t.Errorf("daily total = %+v, want one row of 60", data.Rows)
	}
	tr, err := c.Trace(ctx, session.ID)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if tr.Session != session.ID || len(tr.Spans) < 2 {
		t.Errorf("trace = %+v", tr)
	}
	if err := c.Delete(ctx, session.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestE2E_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Port = "not-a-port"
	if err := run(context.Background(), cfg); err == nil {
		t.Error("expected an error for an invalid port")
	}
}
