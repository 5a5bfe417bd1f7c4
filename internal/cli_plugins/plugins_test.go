package cliplugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usd/internal/announcer"
	"usd/internal/catalog"
	"usd/internal/service"
	"usd/internal/transport"
	"usd/internal/transport/memory"
	"usd/internal/util/logger/handlers/slogdiscard"
	"usd/pkg/cli"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// syncBuffer is written by the announcer worker while the test reads it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestDeps(t *testing.T, tr transport.Transport) (*Deps, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "usd.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`env: test
catalog:
  path: %s
  debounce: 20ms
announcer:
  poll_timeout: 20ms
  shutdown_timeout: 1s
`, dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))

	return &Deps{ConfigPath: cfgPath, Transport: tr}, dbPath
}

func run(ctx context.Context, d *Deps, out io.Writer, args ...string) error {
	c := cli.NewCLI(ctx, "usd", "test")
	Register(c, d)
	c.Root().SetOut(out)
	c.Root().SetErr(io.Discard)
	return c.Run(args)
}

func runOut(t *testing.T, d *Deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), d, &out, args...)
	return out.String(), err
}

func newPeer(t *testing.T, hub *memory.Hub) *announcer.Announcer {
	t.Helper()
	a := announcer.New(context.Background(), announcer.Config{PollTimeout: 20 * time.Millisecond},
		slogdiscard.NewDiscardLogger(), announcer.WithTransport(hub))
	t.Cleanup(func() { a.Stop() })
	return a
}

func knows(a *announcer.Announcer, id string) bool {
	for _, info := range a.KnownServices() {
		if info.ID == id {
			return true
		}
	}
	return false
}

func TestCatalogCommands(t *testing.T) {
	d, dbPath := newTestDeps(t, nil)

	out, err := runOut(t, d, "add", "--id", "svc-1", "--name", "printer",
		"--endpoint", "ipp://10.0.0.5:631/", "-p", "duplex=false", "-p", "color=true")
	require.NoError(t, err)
	assert.Equal(t, "svc-1\n", out)

	out, err = runOut(t, d, "add", "-n", "scanner", "-e", "http://10.0.0.6/")
	require.NoError(t, err)
	_, err = uuid.Parse(string(bytes.TrimSpace([]byte(out))))
	assert.NoError(t, err, "generated id should be a uuid")

	out, err = runOut(t, d, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "printer")
	assert.Contains(t, out, "scanner")
	assert.Contains(t, out, "color=true,duplex=false")

	_, err = runOut(t, d, "remove", "--id", "svc-1")
	require.NoError(t, err)

	recs, err := catalog.Load(catalog.Config{Path: dbPath})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "scanner", recs[0].Name)

	_, err = runOut(t, d, "remove", "--id", "svc-1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name: "missing name",
			args: []string{"add", "-e", "http://a/"},
		},
		{
			name: "missing endpoint",
			args: []string{"add", "-n", "a"},
		},
		{
			name: "property without value",
			args: []string{"add", "-n", "a", "-e", "http://a/", "-p", "novalue"},
		},
		{
			name:    "endpoint is not a uri",
			args:    []string{"add", "-n", "a", "-e", "http://[::1"},
			wantErr: catalog.ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, dbPath := newTestDeps(t, nil)

			_, err := runOut(t, d, tt.args...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			recs, err := catalog.Load(catalog.Config{Path: dbPath})
			require.NoError(t, err)
			assert.Empty(t, recs)
		})
	}
}

func TestList_Empty(t *testing.T) {
	d, _ := newTestDeps(t, nil)

	out, err := runOut(t, d, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no services")
}

func TestImport(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr error
	}{
		{
			name: "two services",
			content: `services:
  - id: printer-1
    name: printer
    endpoint: ipp://10.0.0.5:631/
    properties:
      color: "true"
  - name: scanner
    endpoint: http://10.0.0.6/
`,
			want: 2,
		},
		{
			name: "one invalid service imports nothing",
			content: `services:
  - id: printer-1
    name: printer
    endpoint: ipp://10.0.0.5:631/
  - id: broken
    name: broken
    endpoint: "http://[::1"
`,
			wantErr: catalog.ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, dbPath := newTestDeps(t, nil)
			file := filepath.Join(t.TempDir(), "services.yaml")
			require.NoError(t, os.WriteFile(file, []byte(tt.content), 0600))

			out, err := runOut(t, d, "import", file)
			recs, loadErr := catalog.Load(catalog.Config{Path: dbPath})
			require.NoError(t, loadErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, recs)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, fmt.Sprintf("imported %d services", tt.want))
			require.Len(t, recs, tt.want)
			for _, rec := range recs {
				assert.NotEmpty(t, rec.ID)
			}
		})
	}
}

func TestImport_BadFile(t *testing.T) {
	d, _ := newTestDeps(t, nil)

	_, err := runOut(t, d, "import", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("services: [oops"), 0600))
	_, err = runOut(t, d, "import", file)
	assert.Error(t, err)
}

func TestBrowse(t *testing.T) {
	hub := memory.NewHub()
	peer := newPeer(t, hub)
	require.NoError(t, peer.AddService(service.New("p1", "printer", "ipp://10.0.0.5:631/", nil)))
	require.NoError(t, peer.Start(nil))

	d, _ := newTestDeps(t, hub)
	out, err := runOut(t, d, "browse", "--wait", "500ms")
	require.NoError(t, err)
	assert.Contains(t, out, "printer")
	assert.Contains(t, out, "ipp://10.0.0.5:631/")
}

func TestBrowse_Follow(t *testing.T) {
	hub := memory.NewHub()
	peer := newPeer(t, hub)
	require.NoError(t, peer.Start(nil))

	d, _ := newTestDeps(t, hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, d, &out, "browse", "--follow")
	}()

	group, err := announcer.DefaultConfig().GroupAddr()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Members(group) == 2 }, 2*time.Second, 10*time.Millisecond)

	info := service.New("p1", "printer", "ipp://10.0.0.5:631/", nil)
	require.NoError(t, peer.AddService(info))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("+ printer"))
	}, 2*time.Second, 10*time.Millisecond)

	peer.RemoveService(info)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("- printer"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("browse did not return after cancel")
	}
}

func TestServe(t *testing.T) {
	hub := memory.NewHub()
	observer := newPeer(t, hub)
	require.NoError(t, observer.Start(nil))

	d, _ := newTestDeps(t, hub)
	_, err := runOut(t, d, "add", "--id", "svc-1", "-n", "printer", "-e", "ipp://10.0.0.5:631/")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, d, io.Discard, "serve", "--check-interval", "50ms")
	}()

	require.Eventually(t, func() bool { return knows(observer, "svc-1") }, 3*time.Second, 10*time.Millisecond)

	// catalog edits reach the group while serving
	_, err = runOut(t, d, "add", "--id", "svc-2", "-n", "scanner", "-e", "http://10.0.0.6/")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return knows(observer, "svc-2") }, 3*time.Second, 10*time.Millisecond)

	_, err = runOut(t, d, "remove", "--id", "svc-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !knows(observer, "svc-1") }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

type countingTransport struct {
	*memory.Hub
	listens atomic.Int32
}

func (c *countingTransport) Listen(group *net.UDPAddr) (transport.Receiver, error) {
	c.listens.Add(1)
	return c.Hub.Listen(group)
}

func TestSupervise_RestartsReceiver(t *testing.T) {
	tr := &countingTransport{Hub: memory.NewHub()}
	a := announcer.New(context.Background(), announcer.Config{PollTimeout: 10 * time.Millisecond},
		slogdiscard.NewDiscardLogger(), announcer.WithTransport(tr))
	defer a.Stop()
	require.NoError(t, a.Start(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- supervise(ctx, a, 10*time.Millisecond, slogdiscard.NewDiscardLogger())
	}()

	group, err := announcer.DefaultConfig().GroupAddr()
	require.NoError(t, err)
	tr.Break(group, errors.New("interface down"))

	require.Eventually(t, func() bool { return tr.listens.Load() == 2 && a.Running() }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSupervise_StopsAfterStop(t *testing.T) {
	a := announcer.New(context.Background(), announcer.Config{}, slogdiscard.NewDiscardLogger(),
		announcer.WithTransport(memory.NewHub()))
	require.NoError(t, a.Stop())

	err := supervise(context.Background(), a, time.Millisecond, slogdiscard.NewDiscardLogger())
	assert.NoError(t, err)
}
