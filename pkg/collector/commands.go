package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spyglass-dev/spyglass/pkg/models"
)

// Typed wrappers over the command round-trip. Snapshot commands store the
// reply as an event in addition to resolving the caller, so the captured
// data is queryable and re-broadcast like any other observation.

// CaptureDOMSnapshot asks a live session to serialize its DOM. The reply is
// stored as a dom_snapshot event and returned.
func (c *Collector) CaptureDOMSnapshot(ctx context.Context, sessionID string, params models.CaptureDOMSnapshotParams, timeout time.Duration) (*models.DOMSnapshotBody, error) {
	if timeout <= 0 {
		timeout = c.cfg.CommandTimeout
	}
	data, err := c.router.SendCommand(ctx, sessionID, models.CommandFrame{
		Command: models.CommandCaptureDOMSnapshot,
		Params:  params,
	}, timeout)
	if err != nil {
		return nil, err
	}

	var body models.DOMSnapshotBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: bad snapshot reply: %v", models.ErrInvalidFrame, err)
	}

	c.ingestEvent(&models.Event{
		EventID:     uuid.New().String(),
		SessionID:   sessionID,
		Timestamp:   time.Now().UnixMilli(),
		Type:        models.EventTypeDOMSnapshot,
		DOMSnapshot: &body,
	})
	return &body, nil
}

// ReconScan asks a live session to run scanner categories. The immediate
// reply is an acknowledgement; result payloads arrive later as inbound
// recon_* events.
func (c *Collector) ReconScan(ctx context.Context, sessionID string, params models.ReconScanParams, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.CommandTimeout
	}
	return c.router.SendCommand(ctx, sessionID, models.CommandFrame{
		Command: models.CommandReconScan,
		Params:  params,
	}, timeout)
}

// ReconElementSnapshot asks a live session for a subtree snapshot rooted at
// a selector. The reply is stored as a recon_element_snapshot event and
// returned raw.
func (c *Collector) ReconElementSnapshot(ctx context.Context, sessionID string, params models.ReconElementSnapshotParams, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.CommandTimeout
	}
	data, err := c.router.SendCommand(ctx, sessionID, models.CommandFrame{
		Command: models.CommandReconElementSnapshot,
		Params:  params,
	}, timeout)
	if err != nil {
		return nil, err
	}

	// Wrap the reply in an event frame so it lands in the recon ring with
	// a valid header.
	frame := map[string]any{
		"eventType": models.ReconPrefix + "element_snapshot",
		"eventId":   uuid.New().String(),
		"sessionId": sessionID,
		"timestamp": time.Now().UnixMilli(),
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err == nil {
		for k, v := range fields {
			if _, reserved := frame[k]; !reserved {
				frame[k] = v
			}
		}
	}
	if raw, err := json.Marshal(frame); err == nil {
		if ev, decodeErr := models.DecodeEvent(raw); decodeErr == nil {
			c.ingest(ev, raw)
		}
	}
	return data, nil
}

// ResolveCommandTarget picks the session a command should go to: the
// explicit id when given, otherwise the earliest-connected live session.
func (c *Collector) ResolveCommandTarget(sessionID string) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	id, ok := c.registry.FirstConnected()
	if !ok {
		return "", fmt.Errorf("%w: no connected sessions", ErrNoSession)
	}
	return id, nil
}
