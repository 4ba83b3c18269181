package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  - code: a\n"), 0o600))

	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan *File, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, log, func(_ context.Context, f *File) error {
			applied <- f
			return nil
		})
	}()

	// give the watcher time to register before writing
	deadline := time.After(5 * time.Second)
	var got *File
	for got == nil {
		require.NoError(t, os.WriteFile(path, []byte("roles:\n  - code: b\n"), 0o600))
		select {
		case got = <-applied:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("seed file change was not applied")
		}
	}
	require.Len(t, got.Roles, 1)
	assert.Equal(t, "b", got.Roles[0].Code)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	log, _ := test.NewNullLogger()

	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "seed.yaml"), log, nil)

	assert.Error(t, err)
}
