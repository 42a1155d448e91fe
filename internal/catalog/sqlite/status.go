package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/foiacquire/foiacquire/internal/types"
)

// UpsertServiceStatus writes a heartbeat row keyed by (service_type, host).
// Spec §4.10/§6: a stale heartbeat is never deleted, only possibly flagged
// by a reader, so this is always an upsert, never a delete.
func (s *Store) UpsertServiceStatus(ctx context.Context, st *types.ServiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	countersJSON, err := json.Marshal(st.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO service_status (service_type, host, state, current_source, started_at, last_heartbeat, counters, last_error, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service_type, host) DO UPDATE SET
			state = excluded.state,
			current_source = excluded.current_source,
			last_heartbeat = excluded.last_heartbeat,
			counters = excluded.counters,
			last_error = excluded.last_error,
			error_count = excluded.error_count
	`, st.ServiceType, st.Host, string(st.State), st.CurrentSource, st.StartedAt, st.LastHeartbeat, countersJSON, st.LastError, st.ErrorCount)
	return wrapDBError("upsert service status", err)
}

// ListServiceStatus returns all known service rows (operator status
// surface, spec §6).
func (s *Store) ListServiceStatus(ctx context.Context) ([]*types.ServiceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT service_type, host, state, current_source, started_at, last_heartbeat, counters, last_error, error_count
		FROM service_status
	`)
	if err != nil {
		return nil, wrapDBError("list service status", err)
	}
	defer rows.Close()

	var out []*types.ServiceStatus
	for rows.Next() {
		var st types.ServiceStatus
		var state string
		var countersJSON []byte
		if err := rows.Scan(&st.ServiceType, &st.Host, &state, &st.CurrentSource, &st.StartedAt, &st.LastHeartbeat, &countersJSON, &st.LastError, &st.ErrorCount); err != nil {
			return nil, wrapDBError("scan service status", err)
		}
		st.State = types.ServiceState(state)
		if len(countersJSON) > 0 {
			if err := json.Unmarshal(countersJSON, &st.Counters); err != nil {
				return nil, fmt.Errorf("unmarshal counters: %w", err)
			}
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}
