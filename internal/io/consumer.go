// Package io runs the payload write pipeline: the conversion driver produces
// WorkUnits while consumer goroutines write the container files. Each unit
// targets its own file, so consumers never contend on an output.
package io

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/FLYPoPo7/cdb-to-3dtiles/tools"
)

// Pipeline fans WorkUnits out to consumer goroutines. Submit is safe from a
// single producer; Close waits for the consumers and returns the first write
// error.
type Pipeline struct {
	work  chan *WorkUnit
	group *errgroup.Group
}

// NewPipeline starts workers consumer goroutines; workers <= 0 selects one
// per CPU.
func NewPipeline(workers int) *Pipeline {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pipeline{
		work:  make(chan *WorkUnit, workers*2),
		group: &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.consume)
	}
	return p
}

func (p *Pipeline) consume() error {
	// keep draining after a failure so the producer never blocks on a full
	// channel
	var firstErr error
	for unit := range p.work {
		if firstErr != nil {
			continue
		}
		if err := tools.WriteBinaryFile(unit.TargetPath, unit.Write); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

// Submit queues one payload write.
func (p *Pipeline) Submit(unit *WorkUnit) {
	p.work <- unit
}

// Close signals that no further work will arrive and waits for the consumers.
func (p *Pipeline) Close() error {
	close(p.work)
	return p.group.Wait()
}
