// Package annotation records which services a URL was shared to.
//
// The Merger reads the saved-to list of a URL from a Store, appends the
// service if it is not present yet, makes sure the store knows the URL as a
// history entry, and writes the list back. The read-modify-write sequence is
// not atomic: two concurrent shares of the same URL to different services can
// both read the old list, and the later write then silently drops the other
// service. WithSerializedWrites closes that window with a per-URL lock.
package annotation
