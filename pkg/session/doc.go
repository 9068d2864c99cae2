/*
Package session implements session management and persistence orchestration.

It serializes turns of the same dialogue session across goroutines (and, with a
DistributedLocker, across replicas), creates sessions on first use and records
the state changes a turn's event stream carries: the StateUpdate of a resolved
turn and the pending question of a clarifying one.
*/
package session
