package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Format renders events as a line-aligned text blob.
//
// Blob line k holds the renderings of every event with Line == k, separated by
// a single space and kept in report order. Lines without events are empty, up
// to the highest line that has an event. No events yields "".
func Format(events []Event) string {
	if len(events) == 0 {
		return ""
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Line < sorted[j].Line
	})

	var b strings.Builder
	current := 0
	emitted := false // a value was already written on the current line

	for i, ev := range sorted {
		for current < ev.Line-1 {
			b.WriteByte('\n')
			current++
			emitted = false
		}

		if current == ev.Line && emitted {
			b.WriteByte(' ')
		}

		b.WriteString(Render(ev.Value))
		current = ev.Line
		emitted = true

		if i+1 == len(sorted) || sorted[i+1].Line != ev.Line {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// Render turns a single value into its inline text form.
func Render(v Value) string {
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case json.Number:
		b.WriteString(val.String())
	case string:
		b.WriteString(val)
	case []Value:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, item)
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for i, key := range val.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('"')
			b.WriteString(key)
			b.WriteString(`": `)
			render(b, val.values[key])
		}
		b.WriteByte('}')
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(val))
	default:
		fmt.Fprint(b, val)
	}
}
