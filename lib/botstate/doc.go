// Package botstate is the data access layer of the bot. It declares the schemas of the two
// remote documents and offers typed operations on top of the cache manager:
//
//   - core (admins, enabled forum threads per feature, link settings, link whitelist)
//   - runtime (link violations, admin audit log)
//
// Every operation is a single read or a single atomic read-modify-write of one top level
// key (see cache.Manager.Modify), so concurrent webhook requests never lose updates.
// Mutations are written back by the cache manager, botstate never talks to the remote
// store or the chat platform itself.
//
// Ids are stored as decimal strings in map keys. Timestamps are ISO 8601 strings in the
// configured time zone (Asia/Taipei by default).
package botstate
