package di

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iemanja/iemanjad/internal/di/providers"
)

func testArgs(t *testing.T, bind string) []string {
	t.Helper()
	return []string{
		"--env=development",
		"--log-level=error",
		"--db-address=badger://memory",
		"--api-bind=" + bind,
		"--env-file=" + filepath.Join(t.TempDir(), "missing.env"),
	}
}

func bootstrap(t *testing.T, args []string) *do.RootScope {
	t.Helper()
	injector := NewContainer(args)
	require.NoError(t, Bootstrap(injector))
	t.Cleanup(func() { _ = injector.Shutdown() })
	return injector
}

func getHealth(t *testing.T, client *http.Client, url string) map[string]any {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	return health
}

func TestBootstrap_TCP(t *testing.T) {
	injector := bootstrap(t, testArgs(t, "127.0.0.1:0"))

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)
	url := "http://" + srv.ListenAddr().String() + "/health"

	health := getHealth(t, http.DefaultClient, url)
	assert.Equal(t, "healthy", health["status"])
}

func TestBootstrap_UnixSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "iemanja.sock")
	bootstrap(t, testArgs(t, socket))

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}}

	health := getHealth(t, client, "http://unix/health")
	assert.Equal(t, "healthy", health["status"])
}

func TestBootstrap_SocketInUse(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "iemanja.sock")
	bootstrap(t, testArgs(t, socket))

	second := NewContainer(testArgs(t, socket))
	t.Cleanup(func() { _ = second.Shutdown() })
	assert.Error(t, Bootstrap(second))
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	args := append(testArgs(t, "127.0.0.1:0"), "--log-level=loud")

	injector := NewContainer(args)
	t.Cleanup(func() { _ = injector.Shutdown() })
	assert.Error(t, Bootstrap(injector))
}

func TestBootstrap_BadDatabaseAddress(t *testing.T) {
	args := append(testArgs(t, "127.0.0.1:0"), "--db-address=mysql://nope")

	injector := NewContainer(args)
	t.Cleanup(func() { _ = injector.Shutdown() })
	assert.Error(t, Bootstrap(injector))
}
