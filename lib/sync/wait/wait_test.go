package wait

import (
	"testing"
	"time"
)

func TestWaitWithTimeout(t *testing.T) {
	var w Wait
	w.Add(1)
	if !w.WaitWithTimeout(10 * time.Millisecond) {
		t.Error("expect timeout")
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		w.Done()
	}()
	if w.WaitWithTimeout(time.Second) {
		t.Error("expect no timeout")
	}
}
