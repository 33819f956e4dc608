// Package influxdb records Sentinel events in InfluxDB 2.x.
//
// Two measurements are written:
//
//	access_events     tags: area, status        fields: count, user_id, ip_address
//	resource_changes  tags: action, type        fields: resource_id
//
// Writes are non-blocking and batched by the client library; failures are
// reported through the OnWriteError option. The integration is optional and disabled
// unless influxdb.enabled is set.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAccessEvent(influxdb.AccessEvent{Area: "vault", Status: "falha"})
package influxdb
