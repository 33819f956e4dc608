// Package mqtt connects Sentinel to an MQTT broker: it mirrors access and
// resource events onto topics and receives access reports from door
// controllers.
//
//	sentinel/access/{sucesso|falha}   access log entries as they are written
//	sentinel/access/report            inbound reports (QoS 1)
//	sentinel/resources/{action}       created, updated, deleted
//	sentinel/system/status            retained online/offline, also the LWT
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.AccessEvent("falha"), entry)
package mqtt
