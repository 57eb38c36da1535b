// Package hass adapts the bridge to Home Assistant over MQTT.
//
// Discovery publishes one retained MQTT discovery config per device group
// and platform, and republishes them when Home Assistant comes back
// online. StatePublisher writes group levels to the state topics those
// configs point at. Commands turns command topic messages into modem
// commands. Events raises insteon.button_on and insteon.button_off for
// devices registered for on/off events.
//
// Topic layout:
//
//	homeassistant/<component>/insteon_<id>/group_<n>/config   retained
//	insteon/state/<id>/<n>                                     retained
//	insteon/command/<id>/<n>
//	insteon/event/<id>
package hass
