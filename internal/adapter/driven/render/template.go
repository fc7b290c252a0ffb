package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// flatten checks that vars is a non-empty flat mapping of scalars and returns
// the textual value of each entry.
func flatten(vars map[string]any) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: context is empty", driven.ErrInvalidContext)
	}

	out := make(map[string]string, len(vars))
	for key, v := range vars {
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", driven.ErrInvalidContext)
		}

		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case bool:
			s = strconv.FormatBool(tv)
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			s = fmt.Sprint(tv)
		case float32:
			s = strconv.FormatFloat(float64(tv), 'g', -1, 32)
		case float64:
			s = strconv.FormatFloat(tv, 'g', -1, 64)
		default:
			return nil, fmt.Errorf("%w: key %q has non-scalar value of type %T", driven.ErrInvalidContext, key, v)
		}
		out[key] = s
	}
	return out, nil
}

// substitute expands {name} placeholders in tmpl. Doubled braces are
// literal braces. Every placeholder must resolve; conversions, format specs,
// attribute and index lookups are rejected.
func substitute(name, tmpl string, values map[string]string) (string, error) {
	fail := func(offset int, format string, args ...any) error {
		return &driven.RenderError{
			Template: name,
			Offset:   offset,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fail(i, "unterminated placeholder")
			}
			field := tmpl[i+1 : i+1+end]
			switch {
			case field == "":
				return "", fail(i, "empty placeholder")
			case strings.ContainsAny(field, "{:!.[] \t\n"):
				return "", fail(i, "unsupported placeholder {%s}", field)
			}
			v, ok := values[field]
			if !ok {
				return "", fail(i, "no value for placeholder {%s}", field)
			}
			b.WriteString(v)
			i += end + 2
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", fail(i, "single '}' encountered")
		default:
			next := strings.IndexAny(tmpl[i:], "{}")
			if next < 0 {
				b.WriteString(tmpl[i:])
				i = len(tmpl)
				continue
			}
			b.WriteString(tmpl[i : i+next])
			i += next
		}
	}
	return b.String(), nil
}
