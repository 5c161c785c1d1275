package devserver

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sitepack/internal/build"
	"github.com/wolfeidau/sitepack/internal/config"
	"golang.org/x/net/websocket"
)

type fakeBuilder struct {
	runs int
	err  error
}

func (f *fakeBuilder) Run(ctx context.Context) (*build.Report, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &build.Report{ID: "test", Mode: config.Development}, nil
}

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(root)

	dist := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(dist, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"),
		[]byte("<html>"+strings.Repeat("<p>sitepack</p>", 400)+"</html>"), 0o600))

	return New(cfg, &fakeBuilder{}), root
}

func dialReload(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + ReloadPath
	ws, err := websocket.Dial(url, "", ts.URL)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestAddr_fixedPortInEveryMode(t *testing.T) {
	for _, mode := range []config.Mode{config.Development, config.Production} {
		cfg := config.Default(t.TempDir())
		cfg.Mode = mode
		require.Equal(t, "localhost:3000", New(cfg, &fakeBuilder{}).Addr())
	}
}

func TestHandler_servesGzippedOutput(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(body), "<p>sitepack</p>")
}

func TestHandler_cors(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	req.Header.Set("Origin", "http://example.test")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_corsRestricted(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.DevServer.CORSOrigins = []string{"http://allowed.test"}
	srv := New(cfg, &fakeBuilder{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://other.test")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRebuild_broadcastsReload(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialReload(t, ts)
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Rebuild(context.Background()))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	require.Equal(t, ReloadMessage, msg)
}

func TestRebuild_failureDoesNotReload(t *testing.T) {
	root := t.TempDir()
	builder := &fakeBuilder{err: errors.New("broken")}
	srv := New(config.Default(root), builder)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialReload(t, ts)
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Error(t, srv.Rebuild(context.Background()))
	require.Equal(t, 1, builder.runs)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var msg string
	require.Error(t, websocket.Message.Receive(ws, &msg))
}

func TestHub_clientDisconnect(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialReload(t, ts)
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReloadScript(t *testing.T) {
	require.Contains(t, ReloadScript, ReloadPath)
	require.Contains(t, ReloadScript, `"`+ReloadMessage+`"`)
}
