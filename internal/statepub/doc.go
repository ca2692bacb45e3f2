// Package statepub bridges panel state between the device manager and MQTT.
//
// Outbound, it is wired into the manager as a state listener: every state
// change is published as retained JSON to the panel's state topic, and a
// separate retained availability topic carries "online"/"offline" for
// consumers that only care about reachability.
//
// Inbound, it subscribes to the command topic tree and routes LED and power
// commands to the manager:
//
//	sicp/command/{panel}/led    {"on": true, "color": "#FF2000"}
//	sicp/command/{panel}/power  {"on": false}
//
// LED colour may alternatively be given as discrete "red"/"green"/"blue"
// fields. Malformed payloads and unknown panels are logged and dropped;
// they never disturb the command path of other panels.
package statepub
