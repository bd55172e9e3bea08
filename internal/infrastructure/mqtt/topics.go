package mqtt

import "fmt"

// Topic prefix for all Minihub MQTT traffic.
//
// The topic tree is flat: minihub/{category}/{id}
const (
	// TopicPrefix is the base for all Minihub topics.
	TopicPrefix = "minihub"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "minihub/system"
)

// Topics provides builders for Minihub MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("light.kitchen")
//	// Returns: "minihub/state/light.kitchen"
type Topics struct{}

// Discovery returns the topic external devices announce themselves on.
//
// Example: minihub/discovery/zigbee2mqtt
func (Topics) Discovery(source string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, source)
}

// EntityState returns the topic for state reports from an external device.
//
// Example: minihub/state/light.kitchen
func (Topics) EntityState(entityKey string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entityKey)
}

// EntityCommand returns the topic commands are published to for a device.
//
// Example: minihub/command/light.kitchen
func (Topics) EntityCommand(entityKey string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, entityKey)
}

// SystemStatus returns the system status topic.
//
// Example: minihub/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDiscovery returns a pattern matching all discovery announcements.
//
// Pattern: minihub/discovery/+
func (Topics) AllDiscovery() string {
	return fmt.Sprintf("%s/discovery/+", TopicPrefix)
}

// AllEntityStates returns a pattern matching all state reports.
//
// Pattern: minihub/state/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Minihub topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: minihub/#
func (Topics) AllTopics() string {
	return "minihub/#"
}
