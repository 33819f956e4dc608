package mqtt

import "fmt"

// TopicPrefix is the root of every Sentinel topic.
const TopicPrefix = "sentinel"

// Topics provides builders for Sentinel MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.AccessEvent("falha") // "sentinel/access/falha"
type Topics struct{}

// AccessEvent returns the topic for access log entries with the given status.
//
// Example: sentinel/access/sucesso
func (Topics) AccessEvent(status string) string {
	return fmt.Sprintf("%s/access/%s", TopicPrefix, status)
}

// AccessReport returns the inbound topic where field devices report access attempts.
func (Topics) AccessReport() string {
	return TopicPrefix + "/access/report"
}

// ResourceEvent returns the topic for resource changes.
//
// Example: sentinel/resources/created
func (Topics) ResourceEvent(action string) string {
	return fmt.Sprintf("%s/resources/%s", TopicPrefix, action)
}

// SystemStatus returns the retained status topic used for online/offline and LWT.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllAccessEvents returns a wildcard matching every access event.
// It also matches AccessReport.
func (Topics) AllAccessEvents() string {
	return TopicPrefix + "/access/+"
}

// AllTopics returns a wildcard matching every Sentinel topic.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
