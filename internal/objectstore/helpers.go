package objectstore

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"netsync/internal/syncengine"
)

// hashingProgressWriter forwards writes to w while reporting
// cumulative byte counts through an optional progress callback.
type hashingProgressWriter struct {
	w        io.Writer
	progress syncengine.PutProgressFunc
	written  int64
}

func (hw *hashingProgressWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.written += int64(n)
	if hw.progress != nil {
		func() {
			defer func() { recover() }()
			hw.progress(hw.written)
		}()
	}
	return n, err
}

// hashAccumulator computes the content hash of everything written to
// it, used to verify a Get against its claimed key.
type hashAccumulator struct {
	h *xxhash.Digest
}

func (ha *hashAccumulator) Write(p []byte) (int, error) {
	if ha.h == nil {
		ha.h = xxhash.New()
	}
	return ha.h.Write(p)
}

func (ha *hashAccumulator) Sum() string {
	if ha.h == nil {
		ha.h = xxhash.New()
	}
	return fmt.Sprintf("%016x", ha.h.Sum64())
}
