// Package routing decides which advisor owns a client's conversation.
//
// A conversation starts unassigned (pending). The first advisor to claim it
// — explicitly, or implicitly by replying to the client — becomes its
// assigned advisor. After that the owner only changes by explicit transfer;
// a conversation never returns to unassigned. Assignment state lives
// entirely in the store, where claims and transfers are conditional updates,
// so concurrent claims cannot double-assign.
package routing
