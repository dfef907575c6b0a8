// Package contentstore maps content hashes to local bundle files and fetches
// missing ones from the asset origin.
//
// Files live at <dat>/<hash[:2]>/<hash>. Downloads for one hash are
// serialized by an in-process mutex and a file lock under the cache
// directory, so concurrent workers and concurrent processes never interleave
// writes. The first writer wins: waiters re-check the final path after
// acquiring the lock. Data streams into a uniquely named partial file that is
// renamed into place only after a complete, synced write.
package contentstore
