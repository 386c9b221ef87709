// Package clipname encodes clip metadata into filenames and decodes it back.
//
// The v1 layout is <id>_<createdAtMillis>_<durationMillis>.<ext>. Decoding is
// tolerant: a name that does not match the layout still yields a usable
// result, so the registry never drops a file over an unparseable name.
package clipname

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// delimiter separates the filename segments. Ids must not contain it.
const delimiter = "_"

// Meta is the metadata carried by a clip filename.
type Meta struct {
	ID        string
	CreatedAt time.Time
	Duration  time.Duration
}

// NewID derives a clip id from its capture instant. Id and creation time are
// sourced from the same millisecond so registry entries order naturally by
// recency.
func NewID(t time.Time) string {
	return fmt.Sprintf("clip-%d", t.UnixMilli())
}

// Encode builds the canonical v1 filename for a clip.
func Encode(id string, createdAt time.Time, duration time.Duration, ext string) string {
	return fmt.Sprintf("%s%s%d%s%d.%s",
		id, delimiter, createdAt.UnixMilli(), delimiter, duration.Milliseconds(),
		strings.TrimPrefix(ext, "."))
}

// Decode parses a clip filename. On any parse failure it falls back to
// id = the full filename, createdAt = now, duration = 0 and logs a warning.
// The second return value reports whether the name matched the v1 layout.
func Decode(name string) (Meta, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	segments := strings.Split(base, delimiter)

	if len(segments) == 3 {
		createdMillis, err := strconv.ParseInt(segments[1], 10, 64)
		if err == nil {
			durMillis, err := strconv.ParseInt(segments[2], 10, 64)
			if err == nil && createdMillis >= 0 && durMillis >= 0 {
				return Meta{
					ID:        segments[0],
					CreatedAt: time.UnixMilli(createdMillis),
					Duration:  time.Duration(durMillis) * time.Millisecond,
				}, true
			}
		}
	}

	slog.Warn("Unparseable clip filename, using fallback metadata", "name", name)
	return Meta{
		ID:        name,
		CreatedAt: time.Now(),
		Duration:  0,
	}, false
}
