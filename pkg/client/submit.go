package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vorma-dev/vorma/pkg/protocol"
)

// =============================================================================
// Submissions
// =============================================================================

// SubmitOptions tune one submission.
type SubmitOptions struct {
	// DedupeKey makes the submission replace any in-flight submission
	// carrying the same key, which aborts with reason "deduped".
	DedupeKey string

	// SkipGlobalLoadingIndicator keeps the submission out of the derived
	// isSubmitting status.
	SkipGlobalLoadingIndicator bool

	// Revalidate controls the automatic revalidation after a non-GET
	// submission. nil means on.
	Revalidate *bool
}

// SubmitResult is the caller-facing result of a submission.
type SubmitResult struct {
	Success bool
	Data    json.RawMessage
	Error   string
}

// submissionAborted is the silent result for cancelled submissions.
var submissionAborted = SubmitResult{Success: false, Error: "Aborted"}

// Submit issues a form submission. The body of init passes through
// untouched; callers JSON-encode anything that is not FormData or a
// string before reaching this layer. Non-GET submissions that did not
// redirect trigger a revalidation before Submit returns, so the busy
// indicator hands off submitting to revalidating without a gap.
func (m *NavigationStateManager) Submit(target string, init *RequestInit, opts *SubmitOptions) SubmitResult {
	if opts == nil {
		opts = &SubmitOptions{}
	}

	key := "submission:" + opts.DedupeKey
	if opts.DedupeKey == "" {
		key = uuid.NewString()
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	entry := &SubmissionEntry{
		key:                        key,
		cancel:                     cancel,
		startedAt:                  time.Now(),
		skipGlobalLoadingIndicator: opts.SkipGlobalLoadingIndicator,
	}

	m.mu.Lock()
	if prior, ok := m.submissions[key]; ok {
		prior.cancel(ErrDeduped)
	}
	m.submissions[key] = entry
	m.mu.Unlock()
	m.dispatcher.schedule()
	m.metrics.countSubmission()

	defer func() {
		m.mu.Lock()
		if m.submissions[key] == entry {
			delete(m.submissions, key)
		}
		m.mu.Unlock()
		m.dispatcher.schedule()
	}()

	targetURL, err := m.resolveTarget(target, NavAction)
	if err != nil {
		return SubmitResult{Success: false, Error: err.Error()}
	}

	result, err := m.resolver.HandleRedirects(ctx, HandleRedirectsProps{
		URL:         targetURL,
		RequestInit: init,
	})
	if err != nil {
		if isAbort(err) || context.Cause(ctx) != nil {
			return submissionAborted
		}
		return SubmitResult{Success: false, Error: err.Error()}
	}

	res := result.Response
	m.noteBuildID(res.Header.Get(protocol.HeaderBuildID))

	if result.Redirect != nil && result.Redirect.Status == RedirectShould {
		res.Body.Close()
		m.resolver.Effectuate(result.Redirect, 0, NavigateProps{})
		return SubmitResult{Success: true}
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return SubmitResult{Success: false, Error: strconv.Itoa(res.StatusCode)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		if context.Cause(ctx) != nil {
			return submissionAborted
		}
		return SubmitResult{Success: false, Error: err.Error()}
	}

	var data json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return SubmitResult{Success: false, Error: err.Error()}
		}
	}

	method := http.MethodGet
	if init != nil && init.Method != "" {
		method = strings.ToUpper(init.Method)
	}
	wantRevalidate := opts.Revalidate == nil || *opts.Revalidate
	if method != http.MethodGet && result.Redirect == nil && wantRevalidate {
		m.Revalidate()
	}

	return SubmitResult{Success: true, Data: data}
}
