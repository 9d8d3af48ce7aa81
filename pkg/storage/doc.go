/*
Package storage persists computed plans in a BoltDB file.

The plans live in a single "plans" bucket, keyed by plan ID and encoded as
JSON. A BoltStore holds an exclusive lock on its file; opening the same
data directory twice fails after one second.
*/
package storage
