package bird

import (
	"fmt"
	"strings"
	"time"
)

// Marker is the first line of every generated file.
const Marker = "# Auto-generated user policy for peerlab"

// TimestampLayout is RFC 3339 with a numeric offset, so UTC renders as +00:00.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

func writeHeader(b *strings.Builder, now time.Time) {
	b.WriteString(Marker + "\n")
	fmt.Fprintf(b, "# Generated at: %s\n", now.UTC().Format(TimestampLayout))
	b.WriteString("\n")
}

// StripHeader drops the leading comment block (and the blank line after it) of a generated file.
// Text that does not start with Marker is returned unchanged.
func StripHeader(text string) string {
	if !strings.HasPrefix(text, Marker+"\n") {
		return text
	}
	rest := text
	for strings.HasPrefix(rest, "#") {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			return ""
		}
		rest = rest[i+1:]
	}
	return strings.TrimPrefix(rest, "\n")
}

// StripHeaderBytes is StripHeader for the writer's normalize hook.
func StripHeaderBytes(b []byte) []byte {
	return []byte(StripHeader(string(b)))
}
