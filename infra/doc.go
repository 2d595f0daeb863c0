// Package infra contains technical adapters such as MQTT clients, session
// stores and metrics exporters. These packages should depend only on the
// interfaces defined in the core packages.
package infra
