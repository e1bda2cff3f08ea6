// Package dedup keeps a set of pathnames on a file system image and detects
// when a newly added path has the same contents as one already stored.
//
// Two files are considered the same if they have the same path, or if they
// have the same size, the same xxHash64 checksum, and identical bytes. Each
// check is only done if the cheaper ones before it pass, and the checksum of a
// file is computed at most once no matter how many stored files it's compared
// against.
package dedup
