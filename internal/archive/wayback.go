package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/foiacquire/foiacquire/internal/transport"
	"github.com/foiacquire/foiacquire/internal/types"
)

// cdxTimeLayout is the Wayback CDX API's timestamp format (YYYYMMDDhhmmss).
const cdxTimeLayout = "20060102150405"

// Wayback queries the Internet Archive's CDX API
// (http://web.archive.org/cdx/search/cdx). Fetches run through the same
// transport.Transport used by discovery and fetchpipe (same channel
// selection and error classification). Snapshots does not acquire a
// scheduler permit or report outcomes, so queries to the archive
// service's host are not rate-limited by the scheduler.
type Wayback struct {
	Transport transport.Transport
	Endpoint  string // defaults to the public CDX endpoint
}

func (w *Wayback) Name() string { return "wayback" }

func (w *Wayback) endpoint() string {
	if w.Endpoint != "" {
		return w.Endpoint
	}
	return "http://web.archive.org/cdx/search/cdx"
}

// Snapshots queries the CDX API for all captures of rawURL, requesting the
// digest, mimetype, and length fields alongside the default identity
// fields so matches() can compare without a second round trip per
// snapshot.
func (w *Wayback) Snapshots(ctx context.Context, rawURL string) ([]*types.ArchiveSnapshot, error) {
	q := url.Values{}
	q.Set("url", rawURL)
	q.Set("output", "json")
	q.Set("fl", "timestamp,original,statuscode,mimetype,digest,length")
	q.Set("collapse", "digest")

	resp, err := w.Transport.Fetch(ctx, transport.Request{
		URL:     w.endpoint() + "?" + q.Encode(),
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: cdx query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("archive: cdx query: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read cdx response: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("archive: parse cdx response: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil // header row only, or empty: no captures
	}

	out := make([]*types.ArchiveSnapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}
		capturedAt, err := time.Parse(cdxTimeLayout, row[0])
		if err != nil {
			continue
		}
		status, _ := strconv.Atoi(row[2])
		length, _ := strconv.ParseInt(row[5], 10, 64)
		out = append(out, &types.ArchiveSnapshot{
			Service:       w.Name(),
			OriginalURL:   row[1],
			ArchiveURL:    fmt.Sprintf("https://web.archive.org/web/%s/%s", row[0], row[1]),
			CapturedAt:    capturedAt,
			HTTPStatus:    status,
			Mimetype:      row[3],
			ContentLength: length,
			Digest:        row[4],
		})
	}
	return out, nil
}
