package page

import "strings"

// selector supports a single compound selector: an optional tag followed by
// any of #id, .class and [attr=value] parts, e.g. input[name='bpmpi_auth'].
type selector struct {
	tag     string
	id      string
	classes []string
	attrs   map[string]string
	invalid bool
}

func parseSelector(raw string) selector {
	s := selector{attrs: map[string]string{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		s.invalid = true
		return s
	}

	i := 0
	readIdent := func() string {
		start := i
		for i < len(raw) && !strings.ContainsRune("#.[", rune(raw[i])) {
			i++
		}
		return raw[start:i]
	}

	s.tag = strings.ToLower(readIdent())
	for i < len(raw) {
		switch raw[i] {
		case '#':
			i++
			s.id = readIdent()
		case '.':
			i++
			s.classes = append(s.classes, readIdent())
		case '[':
			end := strings.IndexByte(raw[i:], ']')
			if end < 0 {
				s.invalid = true
				return s
			}
			expr := raw[i+1 : i+end]
			i += end + 1
			name, value, hasValue := strings.Cut(expr, "=")
			name = strings.TrimSpace(name)
			value = strings.Trim(strings.TrimSpace(value), `'"`)
			if !hasValue {
				value = "\x00"
			}
			s.attrs[name] = value
		default:
			s.invalid = true
			return s
		}
	}
	return s
}

func (s selector) matches(n *node) bool {
	if s.invalid {
		return false
	}
	if s.tag != "" && s.tag != n.tag {
		return false
	}
	if s.id != "" && n.attrs["id"] != s.id {
		return false
	}
	for _, c := range s.classes {
		if !n.hasClassLocked(c) {
			return false
		}
	}
	for name, want := range s.attrs {
		got, ok := n.attrs[name]
		if !ok {
			return false
		}
		if want != "\x00" && got != want {
			return false
		}
	}
	return true
}
