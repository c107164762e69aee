// batchscore/sink/stdout/driver.go
package stdout

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"batchscore/sink"
)

/* ────────── public config ────────── */
type Config struct {
	PrintCounter bool      `koanf:"print_counter"` // prepend row#
	Out          io.Writer `koanf:"-"`             // defaults to os.Stdout
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) Write(preds []int) error {
	w := bufio.NewWriter(d.cfg.Out)
	for i, p := range preds {
		var err error
		if d.cfg.PrintCounter {
			_, err = fmt.Fprintf(w, "[row %06d] %d\n", i+1, p)
		} else {
			_, err = fmt.Fprintf(w, "%d\n", p)
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
