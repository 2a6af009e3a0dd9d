package digest

import (
	"strings"
	"time"
)

var strftime = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'e': "_2",
	'H': "15", 'I': "03", 'M': "04", 'S': "05", 'p': "PM",
	'b': "Jan", 'B': "January", 'a': "Mon", 'A': "Monday",
	'Z': "MST", 'z': "-0700", '%': "%",
}

// FormatDate formats t with either a strftime pattern (contains '%') or a Go layout.
func FormatDate(t time.Time, format string) string {
	if format == "" {
		format = "%Y-%m-%d"
	}
	if !strings.Contains(format, "%") {
		return t.Format(format)
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		if layout, ok := strftime[format[i]]; ok {
			if format[i] == '%' {
				b.WriteByte('%')
			} else {
				b.WriteString(t.Format(layout))
			}
			continue
		}
		b.WriteByte('%')
		b.WriteByte(format[i])
	}
	return b.String()
}

// safeFilePart replaces characters that cannot appear in file names.
func safeFilePart(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_").Replace(s)
}
