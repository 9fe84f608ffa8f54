package mqtt

import "fmt"

// Topic prefixes for the flipdot server.
//
// All topics use the scheme: flipdot/{category}/{id}/{leaf}
const (
	// TopicPrefix is the base for all flipdot topics.
	TopicPrefix = "flipdot"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "flipdot/system"
)

// Topics provides builders for flipdot MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DisplayState("front")
//	// Returns: "flipdot/display/front/state"
type Topics struct{}

// DisplayState returns the retained topic carrying a display's current
// configuration and content summary.
//
// Example: flipdot/display/front/state
func (Topics) DisplayState(displayID string) string {
	return fmt.Sprintf("%s/display/%s/state", TopicPrefix, displayID)
}

// DisplayCommit returns the topic for per-frame commit events.
//
// Example: flipdot/display/front/commit
func (Topics) DisplayCommit(displayID string) string {
	return fmt.Sprintf("%s/display/%s/commit", TopicPrefix, displayID)
}

// SystemStatus returns the topic for the server's online/offline status.
//
// Example: flipdot/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
