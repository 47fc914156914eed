package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const flowEventsSchema = `
CREATE TABLE IF NOT EXISTS flow_events (
	id          BIGINT AUTO_INCREMENT PRIMARY KEY,
	job_id      VARCHAR(64)  NOT NULL,
	flow_id     VARCHAR(64)  NOT NULL DEFAULT '',
	flow        VARCHAR(32)  NOT NULL DEFAULT '',
	charge_uuid VARCHAR(64)  NOT NULL DEFAULT '',
	event       VARCHAR(128) NOT NULL,
	error_kind  VARCHAR(32)  NOT NULL DEFAULT '',
	error       TEXT,
	fields      JSON,
	created_at  DATETIME     NOT NULL,
	UNIQUE KEY uq_flow_events_job (job_id),
	KEY idx_flow_events_flow (flow_id)
)`

// FlowEvent is one persisted report line.
type FlowEvent struct {
	JobID      string
	FlowID     string
	Flow       string
	ChargeUUID string
	Event      string
	ErrorKind  string
	Error      string
	Fields     map[string]interface{}
	CreatedAt  time.Time
}

// EnsureSchema creates the flow_events table if needed.
func (c *Connection) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, flowEventsSchema); err != nil {
		return fmt.Errorf("error creating flow_events table: %v", err)
	}
	return nil
}

// SaveFlowEvent inserts the event. Replays of the same job are ignored so
// queue retries stay idempotent.
func (c *Connection) SaveFlowEvent(ctx context.Context, ev FlowEvent) error {
	if ev.JobID == "" {
		return fmt.Errorf("flow event without job id")
	}
	if ev.Event == "" {
		return fmt.Errorf("flow event %s without event name", ev.JobID)
	}

	fieldsJSON, err := json.Marshal(ev.Fields)
	if err != nil {
		return fmt.Errorf("error encoding flow event fields: %v", err)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO flow_events
			(job_id, flow_id, flow, charge_uuid, event, error_kind, error, fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE job_id = job_id
	`, ev.JobID, ev.FlowID, ev.Flow, ev.ChargeUUID, ev.Event, ev.ErrorKind, ev.Error, string(fieldsJSON), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving flow event: %v", err)
	}
	return nil
}

// CountFlowEvents returns how many events were stored for a flow.
func (c *Connection) CountFlowEvents(ctx context.Context, flowID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flow_events WHERE flow_id = ?`, flowID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting flow events: %v", err)
	}
	return n, nil
}
