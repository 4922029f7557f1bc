package cmd

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
)

func TestScheduleRejectsInvalidExpression(t *testing.T) {
	viper.Set("schedule.backup", "every now and then")
	t.Cleanup(func() { viper.Set("schedule.backup", "") })

	err := executeCommand(t, "schedule")
	if err == nil || !strings.Contains(err.Error(), "invalid cron expression") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScheduleRequiresEntries(t *testing.T) {
	err := executeCommand(t, "schedule")
	if err == nil || !strings.Contains(err.Error(), "no schedule entries configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSerializedTasksNeverOverlap(t *testing.T) {
	var mu sync.Mutex
	var running, maxRunning int32

	task := func(context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			seen := atomic.LoadInt32(&maxRunning)
			if n <= seen || atomic.CompareAndSwapInt32(&maxRunning, seen, n) {
				break
			}
		}
		atomic.AddInt32(&running, -1)
		return nil
	}

	// Two distinct entries firing at once must queue on the shared lock,
	// not run side by side.
	a := serialized(&mu, task)
	b := serialized(&mu, task)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = a(context.Background()) }()
		go func() { defer wg.Done(); _ = b(context.Background()) }()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxRunning); got != 1 {
		t.Errorf("observed %d tasks running concurrently, want 1", got)
	}
}
