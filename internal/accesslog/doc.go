// Package accesslog records who tried to enter which area, when, and whether
// they were admitted.
//
// Entries are produced by logins, by access-guard denials and by operators
// through the API. Writes go through a Recorder, which queues entries on a
// bounded channel and persists them from a single goroutine so request
// handlers never wait on the store. Every persisted entry is then handed to
// the configured sinks (live WebSocket feed, MQTT, InfluxDB).
//
// Usage:
//
//	rec := accesslog.NewRecorder(repo, logger, accesslog.DefaultQueueSize, hub, publisher)
//	rec.Start(ctx)
//	defer rec.Close()
//
//	rec.Record(accesslog.Entry{
//	    UserID:    principal.ID,
//	    Area:      "server-room",
//	    Status:    accesslog.StatusSuccess,
//	    IPAddress: "10.0.0.7",
//	})
package accesslog
