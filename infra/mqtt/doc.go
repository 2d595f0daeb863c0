// Package mqtt bridges the simulator to an MQTT broker. Telemetry and
// session events are published as JSON under a topic prefix and commands
// are received on <prefix>/command, with their results published on
// <prefix>/command/result. A retained <prefix>/status topic carries
// "online", or "offline" through the last will.
package mqtt
