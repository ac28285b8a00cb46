package mcmp

import (
	"strings"

	"github.com/coreframe/clustermanager/cmn"
)

// Pair is one decoded key/value token; output is an ordered sequence
// of alternating keys and values.
type Pair struct {
	Key   string
	Value string
}

const forbiddenChars = "<>\"'\r\n"

// Parse tokenizes an MCMP request body of the form "k1=v1&k2=v2&..."
// into an ordered slice of Pairs, percent-decoding each key and value
// in place. Order is preserved and keys may repeat (e.g. CONFIG's
// Alias/Context groups).
func Parse(body string) ([]Pair, error) {
	if body == "" {
		return nil, cmn.NewSyntaxErr(cmn.ErrEmptyBody)
	}

	parts := strings.Split(body, "&")
	pairs := make([]Pair, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			// empty body, trailing empty pairs, and "&&" are all SYNTAX
			// failures - the parser always yields pairs.
			return nil, cmn.NewSyntaxErr(cmn.ErrEmptyBody)
		}

		idx := strings.IndexByte(part, '=')
		if idx < 0 {
			return nil, cmn.NewSyntaxErr(cmn.ErrDanglingKey, part)
		}
		rawKey, rawVal := part[:idx], part[idx+1:]
		if strings.IndexByte(rawVal, '=') >= 0 {
			return nil, cmn.NewSyntaxErr(cmn.ErrBadPercentEncoding)
		}

		key, err := decodePercent(rawKey)
		if err != nil {
			return nil, err
		}
		val, err := decodePercent(rawVal)
		if err != nil {
			return nil, err
		}
		if strings.ContainsAny(key, forbiddenChars) || strings.ContainsAny(val, forbiddenChars) {
			return nil, cmn.NewSyntaxErr(cmn.ErrDecodedForbiddenChar)
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
	}
	return pairs, nil
}

func decodePercent(s string) (string, error) {
	if strings.IndexByte(s, '%') < 0 {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", cmn.NewSyntaxErr(cmn.ErrBadPercentEncoding)
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", cmn.NewSyntaxErr(cmn.ErrBadPercentEncoding)
		}
		sb.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return sb.String(), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// AsMap folds pairs into a map keyed by the last occurrence, useful for
// verbs whose fields never repeat (everything except CONFIG's
// Alias/Context groups). Key lookups are case-insensitive.
func AsMap(pairs []Pair) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[strings.ToUpper(p.Key)] = p.Value
	}
	return m
}
