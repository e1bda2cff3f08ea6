/*
Package unixv6 reads file system images in the format used by the Sixth Edition
of Research Unix.

The original documentation can be found here: http://man.cat-v.org/unix-6th/5/fs

An image is a flat sequence of 512-byte sectors. Sector 0 is the boot block,
sector 1 the superblock, and the inode list starts at sector 2, sixteen 32-byte
inodes per sector. Inode numbers start at 1, and inode 1 is the root directory.

An inode has eight block address slots. Files smaller than eight blocks use them
to point directly at data. Larger files use the first seven as pointers to
indirect sectors of 256 addresses each, and the eighth as a pointer to a doubly
indirect sector whose entries point to further indirect sectors.

A [FileSystem] is not safe for concurrent use. It keeps single-entry caches of
the last inode, the last index sectors, and the last data block it read; callers
sharing one across goroutines must serialize access themselves, or open one
FileSystem per goroutine.
*/

package unixv6
