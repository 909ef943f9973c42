package runtime

import (
	"fmt"
	"io"
	"os"
	"sync"

	"sable/internal/runtime/builtins"
	builtinsio "sable/internal/runtime/builtins/io"
)

// Env aggregates host services used by builtins.
// Env implements builtins.Env to avoid import cycles.
type Env struct {
	ioService builtinsio.IO
}

// IO returns the IO service. Implements builtins.Env interface.
func (e *Env) IO() builtins.IO {
	if e == nil {
		return nil
	}
	return e.ioService
}

// writerIO prints lines to an io.Writer. It is safe for concurrent use so
// several runs may share one sink.
type writerIO struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *writerIO) Println(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, str)
}

// DefaultEnv returns an Env printing to stdout.
func DefaultEnv() *Env {
	return NewWriterEnv(os.Stdout)
}

// NewWriterEnv returns an Env whose print output goes to w.
func NewWriterEnv(w io.Writer) *Env {
	return &Env{ioService: &writerIO{w: w}}
}

// NewEnv creates a new Env with the given IO service.
// This is useful for tests that need to provide a custom IO implementation.
func NewEnv(svc builtinsio.IO) *Env {
	return &Env{ioService: svc}
}
