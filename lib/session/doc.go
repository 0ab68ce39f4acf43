// Package session tracks the admin panel state of every user talking to the bot in a
// private chat: which input the panel waits for, where to return afterwards, and which
// managed chat and panel message the user is working on. A waiting state expires after
// DefaultTTL without an answer.
package session
