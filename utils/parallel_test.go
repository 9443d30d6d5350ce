package utils

import (
	"context"
	"sync"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, size := range []int{0, 1, 7, 1000} {
		seen := make([]int, size)
		var groups int
		var mu sync.Mutex
		doneGroups := 0
		err := GroupWorkParallel(context.Background(), size, func(numGroups int) {
			groups = numGroups
		}, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			test.That(t, to-from, test.ShouldEqual, groupSize)
			return func(memberNum, workNum int) {
					seen[workNum]++
				}, func() {
					mu.Lock()
					doneGroups++
					mu.Unlock()
				}
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, doneGroups, test.ShouldEqual, groups)
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}
}

func TestParallelForEach(t *testing.T) {
	out := make([]int, 513)
	err := ParallelForEach(context.Background(), len(out), func(i int) {
		out[i] = i * i
	})
	test.That(t, err, test.ShouldBeNil)
	for i, v := range out {
		test.That(t, v, test.ShouldEqual, i*i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ParallelForEach(ctx, 10, func(i int) {})
	test.That(t, err, test.ShouldBeError, context.Canceled)
}
