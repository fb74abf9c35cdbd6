/*
Package session coordinates access to stored schedules.

Short operations (load, save, delete) are serialized per schedule with a
reference-counted in-process mutex, plus a distributed lock when one is
configured. Claim reserves a schedule for a whole traversal so that at most
one run of it is active at a time, across processes when a distributed
locker is set.
*/
package session
