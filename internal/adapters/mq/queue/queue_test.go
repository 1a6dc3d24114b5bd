package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/plank/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Test enqueue
	frame1 := model.Frame{FrameID: "frame1", SessionID: "session1", SubjectID: "subject1", TS: time.Now()}
	if !q.Enqueue(ctx, frame1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test dequeue
	frameChan := q.Dequeue(ctx)
	frame := <-frameChan
	if frame.FrameID != "frame1" {
		t.Errorf("expected frame1, got %v", frame.FrameID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Fill the queue
	frame1 := model.Frame{FrameID: "frame1", SessionID: "session1", SubjectID: "subject1"}
	frame2 := model.Frame{FrameID: "frame2", SessionID: "session1", SubjectID: "subject1"}
	frame3 := model.Frame{FrameID: "frame3", SessionID: "session1", SubjectID: "subject1"}

	if !q.Enqueue(ctx, frame1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, frame2) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, frame3) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	numFrames := 100

	// Start producer goroutines
	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numFrames; j++ {
				frame := model.Frame{
					FrameID:   fmt.Sprintf("frame%d_%d", id, j),
					SessionID: fmt.Sprintf("session%d", id),
					SubjectID: fmt.Sprintf("subject%d", id),
					TS:        time.Now(),
				}
				for !q.Enqueue(ctx, frame) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	// Start consumer goroutines
	consumed := make(chan string, numGoroutines*numFrames)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			frameChan := q.Dequeue(ctx)
			for frame := range frameChan {
				consumed <- frame.FrameID
			}
		}()
	}

	// Wait for producers to finish
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	// Wait a bit for consumers to process
	time.Sleep(100 * time.Millisecond)

	// Check final queue length
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	// Enqueue some frames
	frame1 := model.Frame{FrameID: "frame1", SessionID: "session1", SubjectID: "subject1"}
	frame2 := model.Frame{FrameID: "frame2", SessionID: "session1", SubjectID: "subject1"}

	if !q.Enqueue(ctx, frame1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, frame2) {
		t.Error("expected enqueue to succeed")
	}

	// Check initial state
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	// Close the queue
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	// Check closed state
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	// Try to enqueue after closing (should fail)
	if q.Enqueue(ctx, frame1) {
		t.Error("expected enqueue to fail after closing")
	}

	// Dequeue channel should be closed
	frameChan := q.Dequeue(ctx)

	// Wait for channel to be closed
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case _, ok := <-frameChan:
			if !ok {
				// Channel is closed, which is expected
				goto channelClosed
			}
		case <-timeout:
			t.Error("expected dequeue channel to be closed within timeout")
			return
		}
	}
channelClosed:

	// Close again should not error
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
