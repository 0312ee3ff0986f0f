// Package doorduino talks to the door controller over its serial line.
//
// The controller speaks a newline-terminated text protocol. Outbound, it
// accepts add_button, remove_button, list_buttons and spacestate commands;
// inbound, it reports doorbell presses, lock movements, authentications,
// the button list, and its own restarts.
//
// # Components
//
//   - Conn: the open serial port (go.bug.st/serial), read line by line
//   - Decode and the Encode* functions: the line protocol
//   - Device: the shared handle every writer goes through; it serialises
//     commands and fans decoded events out to subscribers
//   - Monitor: the loop that opens the port, waits for the firmware to
//     boot, reads lines, and reopens after a disconnect
//
// # Device quirks
//
// Opening the port resets the controller, which then ignores input for
// about two seconds. Every command is preceded by a bare "\n" so a partial
// line left in the firmware's buffer does not swallow it, and followed by
// a settle delay because the firmware has no acknowledgements.
package doorduino
