// Package sink delivers decoded console lines to a terminal or an MQTT
// broker.
package sink
