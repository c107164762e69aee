// batchscore/sink/file/driver.go
package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"batchscore/sink"
)

/* ────────── public config ────────── */
type Config struct {
	Path string `koanf:"path"` // answers file, replaced atomically
}

/* ────────── driver ────────── */
type driver struct {
	cfg     Config
	written bool
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("file-sink: expected Config, got %T", raw)
	}
	if c.Path == "" {
		return fmt.Errorf("file-sink: path is required")
	}
	d.cfg = c
	return nil
}

// Write renders one class index per line into a temp file next to the
// target and renames it into place, so readers never see a partial file.
func (d *driver) Write(preds []int) error {
	if d.written {
		return fmt.Errorf("file-sink: %s already written", d.cfg.Path)
	}
	for i, p := range preds {
		if p < 0 {
			return fmt.Errorf("file-sink: row %d has negative class %d", i+1, p)
		}
	}

	dir := filepath.Dir(d.cfg.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.cfg.Path)+".*")
	if err != nil {
		return fmt.Errorf("file-sink: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	w := bufio.NewWriter(tmp)
	buf := make([]byte, 0, 8)
	for _, p := range preds {
		buf = strconv.AppendInt(buf[:0], int64(p), 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			_ = tmp.Close()
			cleanup()
			return fmt.Errorf("file-sink: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file-sink: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file-sink: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("file-sink: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		cleanup()
		return fmt.Errorf("file-sink: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.cfg.Path); err != nil {
		cleanup()
		return fmt.Errorf("file-sink: %w", err)
	}
	d.written = true
	return nil
}

func (d *driver) Close() error { return nil }

func (d *driver) Durable() bool { return true }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("file", func() sink.Adapter { return &driver{} })
}
