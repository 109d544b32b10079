//go:build windows

package plugrack

import (
	"os"
)

// fileOwnerUID has no Unix uid to report on Windows; ownership checks are
// rejected as unsupported rather than silently passed.
func fileOwnerUID(fi os.FileInfo) (uint32, bool) {
	return 0, false
}
