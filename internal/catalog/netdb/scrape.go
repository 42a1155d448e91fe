package netdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foiacquire/foiacquire/internal/types"
)

// LoadScrapeState returns the persisted frontier/visited/politeness
// checkpoint for source, or a fresh zero-value state if none exists yet
// (a brand-new source has no prior crawl to resume).
func (s *Store) LoadScrapeState(ctx context.Context, source string) (*types.ScrapeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryContext(ctx, `
		SELECT source, frontier, visited, pagination_cursor, last_error, last_success_at, politeness, degraded
		FROM scrape_state WHERE source = ?
	`, source)
	if err != nil {
		return nil, wrapDBError("load scrape state", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return &types.ScrapeState{Source: source, Visited: make(map[string]time.Time)}, nil
	}

	var st types.ScrapeState
	var frontierJSON, visitedJSON, politenessJSON []byte
	var lastSuccessAt sql.NullTime
	var degraded int
	if err := rows.Scan(&st.Source, &frontierJSON, &visitedJSON, &st.PaginationCursor, &st.LastError, &lastSuccessAt, &politenessJSON, &degraded); err != nil {
		return nil, wrapDBError("scan scrape state", err)
	}

	if len(frontierJSON) > 0 {
		if err := json.Unmarshal(frontierJSON, &st.Frontier); err != nil {
			return nil, fmt.Errorf("unmarshal frontier: %w", err)
		}
	}
	if len(visitedJSON) > 0 {
		if err := json.Unmarshal(visitedJSON, &st.Visited); err != nil {
			return nil, fmt.Errorf("unmarshal visited: %w", err)
		}
	}
	if st.Visited == nil {
		st.Visited = make(map[string]time.Time)
	}
	if len(politenessJSON) > 0 {
		if err := json.Unmarshal(politenessJSON, &st.Politeness); err != nil {
			return nil, fmt.Errorf("unmarshal politeness: %w", err)
		}
	}
	if lastSuccessAt.Valid {
		t := lastSuccessAt.Time
		st.LastSuccessAt = &t
	}
	st.Degraded = degraded != 0
	return &st, nil
}

// SaveScrapeState persists the full checkpoint, overwriting any prior row
// for the source.
func (s *Store) SaveScrapeState(ctx context.Context, st *types.ScrapeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frontierJSON, err := json.Marshal(st.Frontier)
	if err != nil {
		return fmt.Errorf("marshal frontier: %w", err)
	}
	visitedJSON, err := json.Marshal(st.Visited)
	if err != nil {
		return fmt.Errorf("marshal visited: %w", err)
	}
	politenessJSON, err := json.Marshal(st.Politeness)
	if err != nil {
		return fmt.Errorf("marshal politeness: %w", err)
	}

	degraded := 0
	if st.Degraded {
		degraded = 1
	}

	_, err = s.execContext(ctx, `
		INSERT INTO scrape_state (source, frontier, visited, pagination_cursor, last_error, last_success_at, politeness, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			frontier = VALUES(frontier),
			visited = VALUES(visited),
			pagination_cursor = VALUES(pagination_cursor),
			last_error = VALUES(last_error),
			last_success_at = VALUES(last_success_at),
			politeness = VALUES(politeness),
			degraded = VALUES(degraded)
	`, st.Source, frontierJSON, visitedJSON, st.PaginationCursor, st.LastError, st.LastSuccessAt, politenessJSON, degraded)
	return wrapDBError("save scrape state", err)
}
