package tick

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor is the opaque continuation token threaded between rotation batches
// within one tick. It carries the last-seen row id plus the watermark
// timestamp of that row, so successive batches cover distinct rows instead of
// re-scanning the oldest ones.
type Cursor struct {
	LastID    string
	Watermark time.Time
}

// Encode returns the wire form of the cursor, or "" for the zero cursor.
// An empty continuation means "start from the beginning" on input and
// "nothing more to do" on output.
func (c Cursor) Encode() string {
	if c.LastID == "" && c.Watermark.IsZero() {
		return ""
	}
	var mark int64
	if !c.Watermark.IsZero() {
		mark = c.Watermark.UnixNano()
	}
	return strconv.FormatInt(mark, 10) + "|" + c.LastID
}

func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	mark, id, ok := strings.Cut(s, "|")
	if !ok {
		return Cursor{}, fmt.Errorf("malformed cursor %q", s)
	}
	nanos, err := strconv.ParseInt(mark, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor watermark %q: %w", mark, err)
	}
	c := Cursor{LastID: id}
	if nanos != 0 {
		c.Watermark = time.Unix(0, nanos).UTC()
	}
	return c, nil
}

// BatchResult is the outcome of one rotation batch. An empty Cursor tells the
// caller no more eligible rows remain this tick.
type BatchResult struct {
	Processed int
	Cursor    string
}
