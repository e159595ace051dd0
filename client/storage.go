package client

import (
	"github.com/sirupsen/logrus"
)

// freeSpaceFn reports the available bytes at a directory, or -1 when the
// platform cannot tell. Package variable so tests can simulate a full disk.
var freeSpaceFn = platformFreeSpace

// HasEnoughStorage reports whether dir has at least required bytes free.
// When free space cannot be determined the check passes rather than blocking
// the user; a later write failure is classified as a storage error instead.
func (c *Client) HasEnoughStorage(dir string, required int64) bool {
	free := freeSpaceFn(dir)
	if free < 0 {
		logrus.WithFields(logrus.Fields{
			"function": "HasEnoughStorage",
			"dir":      dir,
		}).Warn("Free space unknown, assuming sufficient")
		return true
	}
	return free >= required
}
