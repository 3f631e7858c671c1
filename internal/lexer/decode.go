package lexer

import "strings"

// DecodeString returns the value of a double-quoted STRING literal. Unknown
// escapes are kept verbatim.
func DecodeString(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// TemplateText returns the decoded literal text carried by a template
// token, without its backticks, braces or interpolation markers.
func TemplateText(tok Token) string {
	return decodeTemplate(TemplateRaw(tok))
}

func trimEnds(s string, head, tail int) string {
	if len(s) < head+tail {
		return ""
	}
	return s[head : len(s)-tail]
}

// decodeTemplate keeps template text raw except for escaped backticks and
// dollar signs.
func decodeTemplate(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) && (raw[i+1] == '`' || raw[i+1] == '$') {
			i++
			b.WriteByte(raw[i])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// TemplateRaw returns the undecoded text carried by a template token.
func TemplateRaw(tok Token) string {
	switch tok.Kind {
	case TEMPLATE, TEMPLATE_TAIL:
		return trimEnds(tok.Lit, 1, 1)
	case TEMPLATE_HEAD, TEMPLATE_MIDDLE:
		return trimEnds(tok.Lit, 1, 2)
	}
	return ""
}
