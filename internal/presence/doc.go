// Package presence tracks live connections and room membership.
//
// Registry maps each principal to at most one current connection; a later
// registration for the same user displaces the earlier one (last connect
// wins). Unregister is guarded by connection ID so a displaced connection's
// late disconnect cannot knock the user's current connection out.
//
// Rooms tracks explicit broadcast-group membership per connection. The
// delivery gateway queries members at fan-out time; membership is mutated
// only by join, leave and disconnect cleanup.
package presence
