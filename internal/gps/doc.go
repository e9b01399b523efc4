// Package gps reads NMEA 0183 sentences from a serial GNSS receiver.
//
// A Device owns the port and runs a single read loop:
//   - each line is decoded with go-nmea
//   - decoded sentences go to every subscribed Handler, in order
//   - malformed lines and failing handlers are logged and skipped
//
// OnPosition narrows a subscription to RMC position fixes.
package gps
