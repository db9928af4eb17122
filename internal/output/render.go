package output

import (
	"strconv"

	"github.com/mrzor/lwes-filter-listener/internal/lwes"
)

// Render returns the text line for ev, including the trailing newline.
func Render(ev *lwes.Event) string {
	return string(AppendRender(nil, ev))
}

// AppendRender appends the text line for ev to dst.
func AppendRender(dst []byte, ev *lwes.Event) []byte {
	dst = append(dst, ev.Name...)
	dst = append(dst, '[')
	dst = strconv.AppendInt(dst, int64(ev.Len()), 10)
	dst = append(dst, "] {"...)
	for key, v := range ev.All() {
		dst = append(dst, key...)
		dst = append(dst, " = "...)
		dst = lwes.AppendValue(dst, v)
		dst = append(dst, ';')
	}
	return append(dst, "}\n"...)
}
