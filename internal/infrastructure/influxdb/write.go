package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAccessEvents    = "access_events"
	MeasurementResourceChanges = "resource_changes"
)

// AccessEvent is one access attempt as recorded in the time series.
// Area and Status are tags; the rest are fields.
type AccessEvent struct {
	Area      string
	Status    string
	UserID    string
	IPAddress string
	Time      time.Time
}

// WriteAccessEvent queues an access attempt. The write is non-blocking.
func (c *Client) WriteAccessEvent(e AccessEvent) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(accessEventPoint(e))
}

func accessEventPoint(e AccessEvent) *write.Point {
	fields := map[string]interface{}{
		"count": 1,
	}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.IPAddress != "" {
		fields["ip_address"] = e.IPAddress
	}

	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementAccessEvents,
		map[string]string{
			"area":   e.Area,
			"status": e.Status,
		},
		fields,
		ts,
	)
}

// WriteResourceChange queues an inventory change (created, updated, deleted).
func (c *Client) WriteResourceChange(action, resourceType, resourceID string) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(resourceChangePoint(action, resourceType, resourceID, time.Now()))
}

func resourceChangePoint(action, resourceType, resourceID string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementResourceChanges,
		map[string]string{
			"action": action,
			"type":   resourceType,
		},
		map[string]interface{}{
			"resource_id": resourceID,
		},
		ts,
	)
}
