//go:build !unix

package multiproc

import "os"

// Supported reports whether process files can be memory mapped here.
func Supported() bool { return false }

func mapFile(*os.File, int, bool) ([]byte, error) {
	return nil, ErrUnsupported
}

func unmapFile([]byte) error {
	return nil
}
