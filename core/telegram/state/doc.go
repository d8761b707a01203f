// Package state keeps per-user conversation state for Telegram bots: the
// active FSM step plus a flat string data bag. It does not know about any
// particular flow, so several bots can share it.
package state
