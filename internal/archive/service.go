// Package archive implements the archive-provenance checker (spec.md
// §4.9): for each version due a check, it queries an external web-archive
// service for snapshots of the version's source URL and records whether
// the archive corroborates the version's content, without re-fetching the
// source itself.
package archive

import (
	"context"
	"time"

	"github.com/foiacquire/foiacquire/internal/types"
)

// Service queries one external archive for snapshots of a URL. Wayback is
// the only implementation shipped; archive.today and others are pluggable
// behind this interface (spec.md §1's "bindings to specific vendors are
// peripheral" reasoning applies here as it does to analysis backends).
type Service interface {
	// Name is the service tag recorded on ArchiveCheck rows ("wayback").
	Name() string
	// Snapshots returns all known captures of rawURL, oldest first. An
	// empty slice (nil error) means the service has no snapshots.
	Snapshots(ctx context.Context, rawURL string) ([]*types.ArchiveSnapshot, error)
}

// matches reports whether snapshot corroborates version's content per
// DESIGN.md's O2 decision: an exact digest match is sufficient, and a
// byte-length+mime match is an accepted fallback since archive services
// don't all expose the same digest algorithm as this repo's CAS.
func matches(snapshot *types.ArchiveSnapshot, version *types.Version) bool {
	if snapshot.Digest != "" && snapshot.Digest == version.ContentHash {
		return true
	}
	return snapshot.ContentLength == version.FileSize && snapshot.ContentLength > 0 &&
		snapshot.Mimetype == version.MimeType && snapshot.Mimetype != ""
}

// earliestCapture returns the oldest CapturedAt among snapshots, or nil if
// snapshots is empty.
func earliestCapture(snapshots []*types.ArchiveSnapshot) *time.Time {
	if len(snapshots) == 0 {
		return nil
	}
	earliest := snapshots[0].CapturedAt
	for _, s := range snapshots[1:] {
		if s.CapturedAt.Before(earliest) {
			earliest = s.CapturedAt
		}
	}
	return &earliest
}
