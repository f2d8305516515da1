// Package room implements the single-room mutation dispatcher.
//
// One actor goroutine owns the authoritative RoomState and serializes all
// mutations; each applied command persists its field best-effort and fans
// the new snapshot out through the broadcaster.
package room
