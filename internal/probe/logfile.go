package probe

import (
	"bytes"
	"io"
	"os"
)

// LogPatternChecker scans the service's log file for a literal marker.
// Reads are incremental: each call continues from the previous offset and
// carries the last len(Pattern)-1 bytes so a marker split across two reads
// is still found. A shrunken file (rotation) triggers a rescan from zero.
type LogPatternChecker struct {
	Path    string
	Pattern string

	offset int64
	carry  []byte
}

func (c *LogPatternChecker) Check() (bool, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// The child may not have produced output yet.
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	if fi, err := f.Stat(); err == nil && fi.Size() < c.offset {
		c.offset = 0
		c.carry = nil
	}
	if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
		return false, err
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return false, err
	}
	c.offset += int64(len(buf))

	hay := append(c.carry, buf...)
	if bytes.Contains(hay, []byte(c.Pattern)) {
		return true, nil
	}
	keep := len(c.Pattern) - 1
	if keep > len(hay) {
		keep = len(hay)
	}
	if keep > 0 {
		c.carry = append(c.carry[:0], hay[len(hay)-keep:]...)
	} else {
		c.carry = nil
	}
	return false, nil
}

func (c *LogPatternChecker) Describe() string { return "log:" + c.Pattern }
