//go:build unix

package client

import "golang.org/x/sys/unix"

// platformFreeSpace queries the filesystem holding dir.
func platformFreeSpace(dir string) int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return -1
	}
	return int64(st.Bavail) * int64(st.Bsize)
}
