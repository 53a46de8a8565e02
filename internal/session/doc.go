// Package session provides a TTL-bounded, size-limited cache of live sessions.
//
// The HTTP transport stores one protocol session per Mcp-Session-Id. Entries
// expire after a period of inactivity; every successful Get refreshes the
// entry. When the cache is full the least recently used entry is evicted.
package session
