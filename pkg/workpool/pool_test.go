package workpool

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkers(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), Workers(0))
	assert.Equal(t, runtime.NumCPU(), Workers(-1))
	assert.Equal(t, 3, Workers(3))
}

func TestRunVisitsEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 4, 64} {
		seen := make([]int32, 100)
		Run(len(seen), workers, func(i int) {
			atomic.AddInt32(&seen[i], 1)
		})
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("workers=%d: index %d visited %d times", workers, i, c)
			}
		}
	}
}

func TestRunRespectsLimit(t *testing.T) {
	var active, peak int32
	Run(50, 2, func(i int) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		runtime.Gosched()
		atomic.AddInt32(&active, -1)
	})
	assert.LessOrEqual(t, peak, int32(2))
}

func TestRunErrReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := RunErr(10, 3, func(i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, RunErr(0, 3, func(int) error { return boom }))
}

func TestMapKeepsOrder(t *testing.T) {
	got := Map(20, 4, func(i int) int { return i * i })
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
	assert.Empty(t, Map(0, 4, func(i int) int { return i }))
}
