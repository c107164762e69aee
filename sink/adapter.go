package sink

import (
	"fmt"
	"sort"
)

// Adapter is the common behaviour every prediction sink exposes.
type Adapter interface {
	Configure(any) error     // driver-specific config struct
	Write(preds []int) error // the full prediction vector, in row order
	Close() error            // idempotent
}

// Durable is implemented by adapters whose Write cannot be undone, such as
// a committed file. Runners write them after every other sink succeeded.
type Durable interface {
	Durable() bool
}

// IsDurable reports whether a commits its output on Write.
func IsDurable(a Adapter) bool {
	d, ok := a.(Durable)
	return ok && d.Durable()
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q (registered: %v)", name, Names())
}

// Names lists registered sinks in sorted order.
func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
