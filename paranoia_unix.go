//go:build unix

package plugrack

import (
	"os"
	"syscall"
)

// fileOwnerUID extracts the owning uid from a stat result on Unix systems.
func fileOwnerUID(fi os.FileInfo) (uint32, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return st.Uid, true
}
