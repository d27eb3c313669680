/*
Package events provides an in-memory broker for snapshot lifecycle
events.

Backups and restores publish started/completed/degraded/failed events;
subscribers receive them over buffered channels and slow subscribers are
skipped rather than blocking the publisher. A bounded history of recent
events backs the API's event listing.
*/
package events
