// Package fetchpipe implements the fetch pipeline (spec.md §4.6): given a
// FetchJob, it acquires a scheduler permit, reads the (size-capped) body
// into memory, rejects malformed content, hashes the bytes, inserts the
// document and version into the catalog within one transaction, writes the
// blob to the CAS, and then runs the optional Decompose hook.
package fetchpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/foiacquire/foiacquire/internal/cas"
	"github.com/foiacquire/foiacquire/internal/catalog"
	"github.com/foiacquire/foiacquire/internal/discovery"
	"github.com/foiacquire/foiacquire/internal/scheduler"
	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

const maxBodyBytes = 512 << 20 // 512MiB; a document this large is almost certainly wrong, treated as MalformedContent by the size cap below.

// htmlSniffPrefixes catch an HTML error/interstitial page masquerading as
// a document (spec.md §4.6 step 3, §7 MalformedContent, §8 scenario 6).
var htmlSniffPrefixes = [][]byte{
	[]byte("<!DOCTYPE html"),
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<HTML"),
}

// Pipeline executes FetchJobs end to end.
type Pipeline struct {
	Catalog   catalog.Catalog
	Scheduler *scheduler.Scheduler
	Transport transport.Transport
	CAS       *cas.Store
	Decompose func(ctx context.Context, v *types.Version, body []byte) error // C7 hook; nil is a no-op
}

// Result summarizes the outcome of one fetch job, used by callers (the
// worker loop, tests) that need more than pass/fail.
type Result struct {
	Version  *types.Version
	Inserted bool // false => idempotent skip, spec.md §7 DuplicateContent
}

// Run executes job end to end per spec.md §4.6's seven steps, reporting
// the outcome to the scheduler before returning.
func (p *Pipeline) Run(ctx context.Context, job *types.FetchJob) (*Result, error) {
	canonicalURL, err := discovery.Canonicalize(job.URL)
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindMalformedContent, "fetchpipe.run", fmt.Errorf("canonicalize %s: %w", job.URL, err))
	}
	host := hostOf(job.URL)

	permit, err := p.Scheduler.Acquire(ctx, host)
	if err != nil {
		return nil, err
	}
	defer permit.Release()

	resp, err := p.Transport.Fetch(ctx, transport.Request{URL: job.URL, Timeout: 2 * time.Minute})
	if err != nil {
		_ = p.Scheduler.ReportOutcome(ctx, host, outcomeForError(err))
		return nil, err
	}
	defer resp.Body.Close()

	if retryAfter, polite := retryAfterOf(resp); polite {
		_ = p.Scheduler.ReportOutcome(ctx, host, scheduler.OutcomeRetryableFailure)
		if retryAfter > 0 {
			_ = p.Scheduler.ReportRetryAfter(ctx, host, retryAfter)
		}
		return nil, types.NewPipelineError(types.ErrKindRemotePoliteness, "fetchpipe.run", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		_ = p.Scheduler.ReportOutcome(ctx, host, scheduler.OutcomeNeutral)
		return nil, types.NewPipelineError(types.ErrKindMalformedContent, "fetchpipe.run", fmt.Errorf("status %d", resp.StatusCode))
	}
	_ = p.Scheduler.ReportOutcome(ctx, host, scheduler.OutcomeSuccess)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindTransientNetwork, "fetchpipe.run", err)
	}
	if len(body) > maxBodyBytes {
		return nil, types.NewPipelineError(types.ErrKindMalformedContent, "fetchpipe.run", fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
	}
	if len(body) == 0 {
		_ = p.Scheduler.ReportOutcome(ctx, host, scheduler.OutcomeNeutral)
		return nil, types.NewPipelineError(types.ErrKindMalformedContent, "fetchpipe.run", cas.ErrEmptyInput)
	}

	mimeType := detectMime(resp, body, job.ExpectedMime)
	if isHTMLMasquerade(body, job.ExpectedMime, mimeType) {
		return nil, types.NewPipelineError(types.ErrKindMalformedContent, "fetchpipe.run", fmt.Errorf("html content where %s was expected", job.ExpectedMime))
	}

	documentID := types.DeriveDocumentID(job.Source, canonicalURL)
	now := time.Now()
	doc := &types.Document{
		ID:           documentID,
		Source:       job.Source,
		CanonicalURL: canonicalURL,
		FirstSeen:    now,
		LastSeen:     now,
	}

	sha256Hex, blake3Hex, size := cas.HashBytes(body)
	serverDate := parseServerDate(resp.Header.Get("Date"))
	version := &types.Version{
		DocumentID:        documentID,
		ContentHash:       sha256Hex,
		ContentHashBlake3: blake3Hex,
		FileSize:          size,
		MimeType:          mimeType,
		AcquiredAt:        now,
		SourceURL:         resp.FinalURL,
		OriginalFilename:  filepath.Base(job.URL),
		ServerDate:        serverDate,
	}

	stored, inserted, err := p.Catalog.InsertVersionWithPages(ctx, doc, version, nil)
	if err != nil {
		return nil, types.NewPipelineError(types.ErrKindStorageFailure, "fetchpipe.run", err)
	}

	if inserted {
		if _, err := p.CAS.PutBytes(body); err != nil {
			_ = p.Catalog.DeleteVersion(ctx, stored.ID)
			if errors.Is(err, cas.ErrHashCollision) {
				return nil, types.NewPipelineError(types.ErrKindStorageFailure, "fetchpipe.run", err)
			}
			return nil, types.NewPipelineError(types.ErrKindStorageFailure, "fetchpipe.run", fmt.Errorf("cas put: %w", err))
		}
		if p.Decompose != nil {
			if err := p.Decompose(ctx, stored, body); err != nil {
				return nil, types.NewPipelineError(types.ErrKindStorageFailure, "fetchpipe.run", fmt.Errorf("decompose: %w", err))
			}
		}
	}

	return &Result{Version: stored, Inserted: inserted}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

func retryAfterOf(resp *transport.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, true
}

func outcomeForError(err error) scheduler.Outcome {
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case types.ErrKindTransientNetwork, types.ErrKindRemotePoliteness:
			return scheduler.OutcomeRetryableFailure
		}
	}
	return scheduler.OutcomeNeutral
}

// detectMime prefers the origin's declared Content-Type, falling back to
// http.DetectContentType's sniff. expectedMime is not consulted, so a
// mismatch against it can still be detected downstream.
func detectMime(resp *transport.Response, body []byte, expectedMime string) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			return parsed
		}
	}
	sniffLen := len(body)
	if sniffLen > 512 {
		sniffLen = 512
	}
	return http.DetectContentType(body[:sniffLen])
}

// isHTMLMasquerade flags a response whose body sniffs as HTML while the
// job expected a non-HTML document type (spec.md §8 scenario 6: a 200 with
// an HTML challenge page claiming Content-Type: application/pdf).
func isHTMLMasquerade(body []byte, expectedMime, detectedMime string) bool {
	if expectedMime == "" || strings.Contains(expectedMime, "html") {
		return false
	}
	prefix := body
	if len(prefix) > 256 {
		prefix = prefix[:256]
	}
	prefix = bytes.TrimSpace(prefix)
	for _, sig := range htmlSniffPrefixes {
		if bytes.HasPrefix(prefix, sig) {
			return true
		}
	}
	return strings.HasPrefix(detectedMime, "text/html") && !strings.Contains(expectedMime, "html")
}

func parseServerDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return nil
	}
	return &t
}
