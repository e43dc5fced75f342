package io

import "io"

// WorkUnit is one tile payload to write: the target file and a writer that
// produces the complete container.
type WorkUnit struct {
	TargetPath string
	Write      func(ws io.WriteSeeker) error
}
