package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/fluidity/internal/collector"
	"github.com/crimson-sun/fluidity/internal/config"
	"github.com/crimson-sun/fluidity/internal/hub"
	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/publish"
	"github.com/crimson-sun/fluidity/internal/server"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fluidity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "watch", "history", "config"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestConfigCommandRedacts(t *testing.T) {
	path := writeConfig(t, `
server:
  ingestKey: top-secret
collectors:
  - site: north
    label: gauge1
    collectorType: generic
    keepRaw: false
    deviceAddress: tcp://127.0.0.1:7000
    targets:
      - location: https://hooks.example/in
        key: target-secret
`)
	out, err := run(t, "config", "--config", path, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "gauge1")
	assert.NotContains(t, out, "top-secret")
	assert.NotContains(t, out, "target-secret")
}

func TestConfigCommandMissingFile(t *testing.T) {
	_, err := run(t, "config", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "history:\n  size: -1\n")
	_, err := run(t, "serve", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestWatchArgs(t *testing.T) {
	_, err := run(t, "watch")
	assert.Error(t, err)

	_, err = run(t, "watch", "http://127.0.0.1:1", "--output", "xml")
	assert.Error(t, err)
}

func historyServer(t *testing.T, packets ...model.Packet) string {
	t.Helper()
	h := hub.New(hub.WithLogger(quiet()))
	for _, p := range packets {
		h.Deliver(p)
	}
	ts := httptest.NewServer(server.New(h, server.WithLogger(quiet())).Handler())
	t.Cleanup(func() {
		ts.Close()
		h.Close()
	})
	return ts.URL
}

func packet(seq uint64, site, coll, value string) model.Packet {
	return model.Packet{
		Sequence:        seq,
		Site:            site,
		CollectorID:     coll,
		FormattedFields: []model.FormattedField{model.StringField(value, 0)},
	}
}

func TestHistoryCommandFilters(t *testing.T) {
	url := historyServer(t,
		packet(1, "north", "gauge1", "12.5"),
		packet(2, "south", "pump", "on"),
		packet(3, "north", "gauge1", "12.7"),
	)

	out, err := run(t, "history", url, "--site", "north", "-o", "json")
	require.NoError(t, err)

	var seqs []uint64
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var rec struct {
			Placement string        `json:"placement"`
			Packet    *model.Packet `json:"packet"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		require.NotNil(t, rec.Packet)
		assert.Equal(t, "history", rec.Placement)
		seqs = append(seqs, rec.Packet.Sequence)
	}
	assert.Equal(t, []uint64{1, 3}, seqs)
}

func TestHistoryCommandText(t *testing.T) {
	url := historyServer(t, packet(1, "north", "gauge1", "12.5"))

	out, err := run(t, "history", url, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "north/gauge1")
	assert.Contains(t, out, "12.5")
	assert.Contains(t, out, "visible 1")
}

func TestHistoryCommandUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	_, err := run(t, "history", ts.URL)
	assert.Error(t, err)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeEndToEnd(t *testing.T) {
	device, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { device.Close() })
	go func() {
		conn, err := device.Accept()
		if err != nil {
			return
		}
		fmt.Fprint(conn, "12.5\n12.7\n")
		conn.Close()
	}()

	listen := freeAddr(t)
	cfg := config.Config{
		Log:     config.LogConfig{Level: "error", Format: "text"},
		Server:  config.ServerConfig{Listen: listen, Ingest: true},
		History: config.HistoryConfig{Size: 10, Buffer: 16},
		Archive: config.ArchiveConfig{Path: filepath.Join(t.TempDir(), "packets.ndjson")},
		Collectors: []collector.Config{{
			Site:          "north",
			Label:         "gauge1",
			Type:          "generic",
			KeepRaw:       collector.Bool(false),
			DeviceAddress: "tcp://" + device.Addr().String(),
			Targets:       []publish.Target{{Location: "https://127.0.0.1:1/in"}},
		}},
	}
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, quiet()) }()

	var got []model.Packet
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listen + "/FIFO")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		got = nil
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return false
		}
		return len(got) == 2
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, uint64(1), got[0].Sequence)
	assert.Equal(t, uint64(2), got[1].Sequence)
	assert.Equal(t, "12.7", got[1].FormattedFields[0].Text)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}

	archived, err := os.ReadFile(cfg.Archive.Path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(archived), "\n"))
}
