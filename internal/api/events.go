package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sentinel-core/internal/resource"
)

// reportLookupTimeout bounds the user check for an inbound access report.
const reportLookupTimeout = 5 * time.Second

// resourceEvent is the payload for resource.changed notifications.
type resourceEvent struct {
	Action   string             `json:"action"`
	Resource *resource.Resource `json:"resource"`
}

// accessSinks returns the destinations a persisted access entry fans out to:
// the WebSocket hub, and MQTT and InfluxDB when configured.
func (s *Server) accessSinks() []accesslog.Sink {
	sinks := []accesslog.Sink{
		accesslog.SinkFunc(func(_ context.Context, e accesslog.Entry) {
			s.hub.Broadcast(ChannelAccessEvent, e)
		}),
	}

	if s.mqtt != nil {
		sinks = append(sinks, accesslog.SinkFunc(func(_ context.Context, e accesslog.Entry) {
			topic := mqtt.Topics{}.AccessEvent(string(e.Status))
			if err := s.mqtt.PublishJSON(topic, e); err != nil {
				s.logger.Debug("access event not published to MQTT", "topic", topic, "error", err)
			}
		}))
	}

	if s.influx != nil {
		sinks = append(sinks, accesslog.SinkFunc(func(_ context.Context, e accesslog.Entry) {
			s.influx.WriteAccessEvent(influxdb.AccessEvent{
				Area:      e.Area,
				Status:    string(e.Status),
				UserID:    e.UserID,
				IPAddress: e.IPAddress,
				Time:      e.AccessTime,
			})
		}))
	}

	return sinks
}

// publishResourceChange notifies subscribers of an inventory change.
func (s *Server) publishResourceChange(action string, r *resource.Resource) {
	s.hub.Broadcast(ChannelResourceChanged, resourceEvent{Action: action, Resource: r})

	if s.mqtt != nil {
		topic := mqtt.Topics{}.ResourceEvent(action)
		if err := s.mqtt.PublishJSON(topic, resourceEvent{Action: action, Resource: r}); err != nil {
			s.logger.Debug("resource event not published to MQTT", "topic", topic, "error", err)
		}
	}
	if s.influx != nil {
		s.influx.WriteResourceChange(action, string(r.Type), r.ID)
	}
}

// accessReport is the payload gate controllers publish on the access report topic.
type accessReport struct {
	UserID    string           `json:"user_id,omitempty"`
	Area      string           `json:"access_area"`
	Status    accesslog.Status `json:"status"`
	IPAddress string           `json:"ip_address,omitempty"`
	Detail    string           `json:"detail,omitempty"`
}

// subscribeAccessReports records access events published over MQTT.
// It is a no-op without a broker.
func (s *Server) subscribeAccessReports() error {
	if s.mqtt == nil {
		return nil
	}
	topic := mqtt.Topics{}.AccessReport()
	s.logger.Info("subscribing to access reports", "topic", topic)
	return s.mqtt.Subscribe(topic, 1, s.handleAccessReport)
}

// handleAccessReport turns one MQTT access report into an access log entry.
// Malformed reports are logged and discarded.
func (s *Server) handleAccessReport(topic string, payload []byte) error {
	var report accessReport
	if err := json.Unmarshal(payload, &report); err != nil {
		s.logger.Warn("discarding malformed access report", "topic", topic, "error", err)
		return nil
	}

	entry := accesslog.Entry{
		UserID:    report.UserID,
		Area:      report.Area,
		Status:    report.Status,
		IPAddress: report.IPAddress,
		Detail:    report.Detail,
	}
	if err := entry.Validate(); err != nil {
		s.logger.Warn("discarding invalid access report", "topic", topic, "error", err)
		return nil
	}

	if entry.UserID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), reportLookupTimeout)
		defer cancel()
		if _, err := s.users.GetByID(ctx, entry.UserID); err != nil {
			if !errors.Is(err, auth.ErrUserNotFound) {
				return fmt.Errorf("checking reported user: %w", err)
			}
			// Keep the event but not the dangling reference.
			entry.Detail = joinDetail(entry.Detail, "unknown user_id="+entry.UserID)
			entry.UserID = ""
		}
	}

	s.recorder.Record(entry)
	return nil
}

func joinDetail(detail, note string) string {
	if detail == "" {
		return note
	}
	return detail + "; " + note
}
