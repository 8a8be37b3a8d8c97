// internal/frontier/frontier_test.go
package frontier

import (
	"testing"
)

func TestEnqueueDedup(t *testing.T) {
	f := New()

	if !f.Enqueue("https://example.com/user/show/1-a") {
		t.Fatal("First enqueue should succeed")
	}
	if f.Enqueue("https://example.com/user/show/1-a") {
		t.Fatal("Second enqueue of the same URL should be refused")
	}
	if f.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", f.Pending())
	}
}

func TestVisitedNeverRequeued(t *testing.T) {
	f := New()
	f.Enqueue("https://example.com/user/show/1-a")

	url, ok := f.Next()
	if !ok || url != "https://example.com/user/show/1-a" {
		t.Fatalf("Next = %q (ok=%v)", url, ok)
	}
	if node, _ := f.Lookup(url); node.State != Visited {
		t.Fatalf("State after Next = %v, want Visited", node.State)
	}
	if f.Enqueue(url) {
		t.Fatal("Visited URL must not re-enter the queue")
	}
	if _, ok := f.Next(); ok {
		t.Fatal("Queue should be drained")
	}
}

func TestObserveThenEnqueue(t *testing.T) {
	f := New()

	f.Observe("https://example.com/user/show/2-b", 12)
	if f.Pending() != 0 {
		t.Fatal("Observe must not queue")
	}
	if !f.Enqueue("https://example.com/user/show/2-b") {
		t.Fatal("Discovered URL should still be queueable")
	}
	node, ok := f.Lookup("https://example.com/user/show/2-b")
	if !ok || node.FriendCount != 12 || node.State != Queued {
		t.Fatalf("Node = %+v", node)
	}
}

func TestNextIsFIFO(t *testing.T) {
	f := New()
	f.Enqueue("https://example.com/user/show/1-a")
	f.Enqueue("https://example.com/user/show/2-b")

	first, _ := f.Next()
	second, _ := f.Next()
	if first != "https://example.com/user/show/1-a" || second != "https://example.com/user/show/2-b" {
		t.Fatalf("Order = %q, %q", first, second)
	}
}
