package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecorpus/internal/policy"
)

func newTestFrontier(t *testing.T, base string, maxDepth int) *Frontier {
	t.Helper()
	p, err := policy.New(base, maxDepth, false, true)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	return NewFrontier(p, NewTracker(), discardLogger())
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://x.test/a#section":  "https://x.test/a",
		"https://x.test/a":          "https://x.test/a",
		"https://x.test/a/#":        "https://x.test/a/",
		"  https://x.test/b?q=1#f ": "https://x.test/b?q=1",
	}
	for in, want := range tests {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTracker(t *testing.T) {
	t.Parallel()

	t.Run("marks once", func(t *testing.T) {
		t.Parallel()

		tr := NewTracker()
		if !tr.MarkIfNew("https://x.test/") {
			t.Error("first mark should report new")
		}
		if tr.MarkIfNew("https://x.test/") {
			t.Error("second mark should report seen")
		}
		if !tr.Seen("https://x.test/") || tr.Len() != 1 {
			t.Error("expected url to be tracked")
		}
	})

	t.Run("concurrent marks have one winner", func(t *testing.T) {
		t.Parallel()

		tr := NewTracker()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if tr.MarkIfNew("https://x.test/page") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Errorf("expected exactly one winner, got %d", got)
		}
	})
}

func TestFrontierEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("assigns increasing sequence numbers in fifo order", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 2)
		for _, u := range []string{"https://x.test/", "https://x.test/a", "https://x.test/b"} {
			if !f.Enqueue(u, 1) {
				t.Fatalf("expected %s to be accepted", u)
			}
		}

		for i, want := range []string{"https://x.test/", "https://x.test/a", "https://x.test/b"} {
			target, ok := f.Dequeue()
			if !ok {
				t.Fatalf("queue empty at %d", i)
			}
			if target.URL != want || target.Seq != uint64(i+1) {
				t.Errorf("got %+v, expected url %s seq %d", target, want, i+1)
			}
		}
		if _, ok := f.Dequeue(); ok {
			t.Error("expected queue to be empty")
		}
	})

	t.Run("fragment variants are duplicates", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 2)
		if !f.Enqueue("https://x.test/a#one", 1) {
			t.Fatal("expected first variant to be accepted")
		}
		if f.Enqueue("https://x.test/a#two", 1) || f.Enqueue("https://x.test/a", 2) {
			t.Error("expected fragment variants to be rejected")
		}
		target, _ := f.Dequeue()
		if target.URL != "https://x.test/a" {
			t.Errorf("expected canonical url without fragment, got %q", target.URL)
		}
	})

	t.Run("first seen depth wins", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 3)
		f.Enqueue("https://x.test/a", 1)
		f.Enqueue("https://x.test/a", 0)
		target, _ := f.Dequeue()
		if target.Depth != 1 {
			t.Errorf("got depth %d, expected 1", target.Depth)
		}
	})

	t.Run("rejects out of scope urls", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/docs/", 1)
		rejected := []struct {
			url   string
			depth int
		}{
			{"https://y.test/docs/a", 1},
			{"http://x.test/docs/a", 1},
			{"https://x.test/blog", 1},
			{"https://x.test/docs/a/b", 1},
			{"https://x.test/docs/a", 2},
			{"https://x.test/docs/a.pdf", 1},
			{"https://x.test/docs/a.epub", 1},
			{"", 0},
		}
		for _, r := range rejected {
			if f.Enqueue(r.url, r.depth) {
				t.Errorf("expected %q at depth %d to be rejected", r.url, r.depth)
			}
		}
		if f.Len() != 0 {
			t.Errorf("expected empty queue, got %d", f.Len())
		}
	})

	t.Run("rejected urls are not marked seen", func(t *testing.T) {
		t.Parallel()

		p, err := policy.New("https://x.test/", 1, true, true)
		if err != nil {
			t.Fatalf("policy.New: %v", err)
		}
		tracker := NewTracker()
		f := NewFrontier(p, tracker, discardLogger())
		f.Enqueue("https://other.test/", 1)
		if tracker.Seen("https://other.test/") {
			t.Error("policy rejection must not mark the url")
		}
	})

	t.Run("path filter", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 2).withFilter(pathFilter{ignore: []string{"/private/*"}})
		if f.Enqueue("https://x.test/private/key", 2) {
			t.Error("expected ignored path to be rejected")
		}
		if !f.Enqueue("https://x.test/public/page", 2) {
			t.Error("expected other path to be accepted")
		}
	})
}

func TestFrontierNext(t *testing.T) {
	t.Parallel()

	t.Run("returns false when empty and idle", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 1)
		if _, ok := f.Next(context.Background()); ok {
			t.Error("expected no work")
		}
	})

	t.Run("blocks while work is in flight", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 1)
		f.Enqueue("https://x.test/", 0)

		first, ok := f.Next(context.Background())
		if !ok || first.URL != "https://x.test/" {
			t.Fatalf("unexpected first target %+v", first)
		}

		got := make(chan string, 1)
		go func() {
			target, ok := f.Next(context.Background())
			if !ok {
				got <- ""
				return
			}
			got <- target.URL
		}()

		select {
		case u := <-got:
			t.Fatalf("Next returned %q before new work arrived", u)
		case <-time.After(50 * time.Millisecond):
		}

		f.Enqueue("https://x.test/child", 1)
		f.Done()

		select {
		case u := <-got:
			if u != "https://x.test/child" {
				t.Errorf("got %q, expected child", u)
			}
		case <-time.After(time.Second):
			t.Fatal("Next did not wake up")
		}
	})

	t.Run("wakes waiters when last work finishes", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 1)
		f.Enqueue("https://x.test/", 0)
		if _, ok := f.Next(context.Background()); !ok {
			t.Fatal("expected a target")
		}

		done := make(chan bool, 1)
		go func() {
			_, ok := f.Next(context.Background())
			done <- ok
		}()

		time.Sleep(20 * time.Millisecond)
		f.Done()

		select {
		case ok := <-done:
			if ok {
				t.Error("expected no more work")
			}
		case <-time.After(time.Second):
			t.Fatal("Next did not return after Done")
		}
	})

	t.Run("context cancellation unblocks", func(t *testing.T) {
		t.Parallel()

		f := newTestFrontier(t, "https://x.test/", 1)
		f.Enqueue("https://x.test/", 0)
		if _, ok := f.Next(context.Background()); !ok {
			t.Fatal("expected a target")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, ok := f.Next(ctx); ok {
			t.Error("expected Next to give up on cancellation")
		}
	})
}
