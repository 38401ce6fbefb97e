//go:build unix

package multiproc

import (
	"os"

	"golang.org/x/sys/unix"
)

// Supported reports whether process files can be memory mapped here.
func Supported() bool { return true }

func mapFile(f *os.File, size int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
