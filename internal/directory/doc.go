// Package directory caches agent metadata in memory so repeated session
// opens for the same handle skip the network, bounded by a staleness TTL.
package directory
