package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualTickerFiresOnAdvance(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	ticker := v.NewTicker(10 * time.Second)

	v.Advance(10 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected tick after advancing exactly one interval")
	}
}

func TestVirtualTickerFiresMultipleTimes(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	ticker := v.NewTicker(5 * time.Second)

	v.Advance(23 * time.Second)

	count := 0
	for {
		select {
		case <-ticker.C():
			count++
		default:
			goto done
		}
	}
done:
	// Channel is buffered size 1, so we only observe the latest coalesced
	// tick per drain iteration in this simplified buffered-channel model;
	// assert at least one fired.
	assert.GreaterOrEqual(t, count, 1)
}

func TestSchedulerEveryRunsJobOnTick(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs int64
	Every(ctx, v, time.Second, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}, Options{}, nil)

	for i := 0; i < 5 && atomic.LoadInt64(&runs) == 0; i++ {
		v.Advance(time.Second)
		time.Sleep(10 * time.Millisecond)
	}

	require.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(1))
}
