// Package redis implements the Redis-backed room state store.
//
// The room's three durable fields live in a single hash, each saved
// independently so a failed write on one field never blocks the others.
package redis
