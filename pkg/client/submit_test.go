package client

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Submission Tests
// =============================================================================

func TestSubmitPostTriggersRevalidation(t *testing.T) {
	var posts, gets atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/x", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.Write([]byte(`{"ok": true}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		payloadHandler("Home")(w, r)
	})
	env := newTestEnv(t, mux)

	result := env.rt.Submit("/api/x", &RequestInit{Method: http.MethodPost}, nil)
	if !result.Success {
		t.Fatalf("submit failed: %s", result.Error)
	}
	if string(result.Data) != `{"ok": true}` {
		t.Errorf("data = %s", result.Data)
	}

	waitFor(t, "the auto-revalidation", func() bool { return gets.Load() == 1 })
	if posts.Load() != 1 {
		t.Errorf("posts = %d, want 1", posts.Load())
	}
}

func TestSubmitWithRevalidateFalseIssuesOneFetch(t *testing.T) {
	var total atomic.Int64
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		total.Add(1)
		w.Write([]byte(`{}`))
	}))

	off := false
	result := env.rt.Submit("/api/x", &RequestInit{Method: http.MethodPost}, &SubmitOptions{Revalidate: &off})
	if !result.Success {
		t.Fatalf("submit failed: %s", result.Error)
	}
	time.Sleep(30 * time.Millisecond)
	if got := total.Load(); got != 1 {
		t.Errorf("fetches = %d, want exactly 1", got)
	}
}

func TestSubmitDedupeAbortsPrior(t *testing.T) {
	var calls atomic.Int64
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		w.Write([]byte(`{"n": 2}`))
	}))

	var wg sync.WaitGroup
	var first, second SubmitResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = env.rt.Submit("/x", &RequestInit{Method: http.MethodPost}, &SubmitOptions{DedupeKey: "k", Revalidate: boolPtr(false)})
	}()
	time.Sleep(10 * time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second = env.rt.Submit("/x", &RequestInit{Method: http.MethodPost}, &SubmitOptions{DedupeKey: "k", Revalidate: boolPtr(false)})
	}()
	wg.Wait()

	if first.Success || first.Error != "Aborted" {
		t.Errorf("first = %+v, want Aborted failure", first)
	}
	if !second.Success {
		t.Errorf("second = %+v, want success", second)
	}
	if string(second.Data) != `{"n": 2}` {
		t.Errorf("second data = %s", second.Data)
	}
}

func TestSubmitNonOKReturnsStatusString(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))

	result := env.rt.Submit("/x", &RequestInit{Method: http.MethodPost}, &SubmitOptions{Revalidate: boolPtr(false)})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "403" {
		t.Errorf("error = %q, want %q", result.Error, "403")
	}
}

func TestSubmitRedirectReturnsSuccessWithoutData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Client-Redirect", "https://elsewhere.example/done")
		w.Write([]byte(`{}`))
	})
	env := newTestEnv(t, mux)

	result := env.rt.Submit("/x", &RequestInit{Method: http.MethodPost}, nil)
	if !result.Success {
		t.Fatalf("submit failed: %s", result.Error)
	}
	if result.Data != nil {
		t.Errorf("data = %s, want none", result.Data)
	}
	env.dom.mu.Lock()
	defer env.dom.mu.Unlock()
	if len(env.dom.assigned) != 1 {
		t.Errorf("assigned = %v, want the redirect target", env.dom.assigned)
	}
}

func TestSubmitBodyPassesThroughUntouched(t *testing.T) {
	var received string
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = string(b)
		w.Write([]byte(`{}`))
	}))

	env.rt.Submit("/x", &RequestInit{
		Method: http.MethodPost,
		Body:   strings.NewReader(`{"raw":"body"}`),
	}, &SubmitOptions{Revalidate: boolPtr(false)})

	if received != `{"raw":"body"}` {
		t.Errorf("body = %q, want the raw payload", received)
	}
}

func TestSubmitForwardsDeploymentID(t *testing.T) {
	var header string
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("x-deployment-id")
		w.Write([]byte(`{}`))
	}))
	env.rt.RouteState().SetDeploymentID("dpl-7")

	env.rt.Submit("/x", &RequestInit{Method: http.MethodPost}, &SubmitOptions{Revalidate: boolPtr(false)})
	if header != "dpl-7" {
		t.Errorf("x-deployment-id = %q, want dpl-7", header)
	}
}

func TestSubmitStatusHandoffHasNoGap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/x", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		payloadHandler("Home")(w, r)
	})
	env := newTestEnv(t, mux)

	var mu sync.Mutex
	var observed []Status
	env.rt.Events().OnStatus(func(s Status) {
		mu.Lock()
		observed = append(observed, s)
		mu.Unlock()
	})

	result := env.rt.Submit("/api/x", &RequestInit{Method: http.MethodPost}, nil)
	if !result.Success {
		t.Fatalf("submit failed: %s", result.Error)
	}

	waitFor(t, "the run to quiesce", func() bool {
		s := env.rt.GetStatus()
		return !s.IsSubmitting && !s.IsRevalidating && !s.IsNavigating
	})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(observed) == 0 {
		t.Fatal("no status events observed")
	}
	for i, s := range observed[:len(observed)-1] {
		if !s.IsNavigating && !s.IsSubmitting && !s.IsRevalidating {
			t.Errorf("intermediate status %d is all-false: %+v", i, s)
		}
	}
	final := observed[len(observed)-1]
	if final.IsNavigating || final.IsSubmitting || final.IsRevalidating {
		t.Errorf("final status = %+v, want all false", final)
	}
}

func TestSubmitSkipGlobalLoadingIndicator(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{}`))
	}))

	done := make(chan SubmitResult, 1)
	go func() {
		done <- env.rt.Submit("/x", &RequestInit{Method: http.MethodPost}, &SubmitOptions{
			SkipGlobalLoadingIndicator: true,
			Revalidate:                 boolPtr(false),
		})
	}()

	time.Sleep(20 * time.Millisecond)
	if env.rt.GetStatus().IsSubmitting {
		t.Error("skipGlobalLoadingIndicator submission still derived isSubmitting")
	}
	close(release)
	if r := <-done; !r.Success {
		t.Fatalf("submit failed: %s", r.Error)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
