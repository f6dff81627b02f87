// Package hub fans websocket messages out to connected clients using
// channels. Slow clients are dropped instead of stalling the broadcaster.
package hub

import "time"

// Message is one pre-encoded text frame queued for every client.
type Message struct {
	Data []byte
}

// Envelope is the JSON shape of every broadcast.
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}
