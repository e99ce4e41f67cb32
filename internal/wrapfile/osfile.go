package wrapfile

import "os"

// OSFile adapts *os.File to the ByteFile interface.
type OSFile struct {
	*os.File
}

// Size reports the current file size via Stat.
func (f OSFile) Size() (int64, error) {
	info, err := f.File.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
