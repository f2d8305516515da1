// Package broadcast implements the session registry and state fan-out.
//
// An actor goroutine owns the membership map (register/unregister/broadcast
// commands), and each connection gets a writer goroutine with a buffered send
// channel. A client whose buffer fills is evicted in the same broadcast.
package broadcast
