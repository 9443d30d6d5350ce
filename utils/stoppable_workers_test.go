package utils

import (
	"context"
	"testing"

	"go.uber.org/atomic"
	"go.viam.com/test"
)

func TestStoppableWorkers(t *testing.T) {
	var stopped atomic.Int32
	worker := func(ctx context.Context) {
		<-ctx.Done()
		stopped.Inc()
	}
	workers := NewStoppableWorkers(worker, worker)
	workers.AddWorkers(worker)
	workers.Stop()
	test.That(t, stopped.Load(), test.ShouldEqual, int32(3))

	// Adding after Stop is a no-op.
	workers.AddWorkers(worker)
	test.That(t, stopped.Load(), test.ShouldEqual, int32(3))
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)
}

func TestStoppableWorkersWithParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	workers := NewStoppableWorkersWithParent(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	workers.Stop()
}
