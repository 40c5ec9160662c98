package configwatcher

import (
	"context"
	"lms_backend/internal/config"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchConfig_Reloads(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	write := func(score int) {
		body := "storage:\n  local_path: " + filepath.Join(dir, "uploads") +
			"\nprogression:\n  module_passing_score: " + strconv.Itoa(score) + "\n"
		require.NoError(t, os.WriteFile(file, []byte(body), 0644))
	}
	write(80)

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *config.Config, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- WatchConfig(ctx, file, func(cfg *config.Config) { reloaded <- cfg })
	}()

	// 等待监听建立
	time.Sleep(200 * time.Millisecond)
	write(65)

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 65.0, cfg.Progression.ModulePassingScore)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
