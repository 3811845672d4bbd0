package csvsource

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// decodeAny tries each supported encoding in priority order and returns
// the decoded text plus the name of the encoding that succeeded.
func decodeAny(raw []byte) (string, string, error) {
	attempts := []struct {
		name   string
		decode func([]byte) (string, error)
	}{
		{"utf-8-sig", decodeUTF8BOM},
		{"utf-8", decodeUTF8},
		{"latin-1", decodeCharmap(charmap.ISO8859_1)},
		{"windows-1252", decodeCharmap(charmap.Windows1252)},
	}

	var lastErr error
	for _, attempt := range attempts {
		text, err := attempt.decode(raw)
		if err == nil {
			return text, attempt.name, nil
		}
		lastErr = err
	}
	return "", "", lastErr
}

func decodeUTF8BOM(raw []byte) (string, error) {
	if !hasBOM(raw) {
		return "", fmt.Errorf("no byte-order marker")
	}
	stripped := raw[len(utf8BOM):]
	if !validUTF8(stripped) {
		return "", fmt.Errorf("invalid UTF-8 after byte-order marker")
	}
	return string(stripped), nil
}

func decodeUTF8(raw []byte) (string, error) {
	if !validUTF8(raw) {
		return "", fmt.Errorf("invalid UTF-8")
	}
	return string(raw), nil
}

func decodeCharmap(cm *charmap.Charmap) func([]byte) (string, error) {
	return func(raw []byte) (string, error) {
		decoded, err := cm.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		// The charmap decoders substitute U+FFFD for unmapped bytes
		// instead of erroring; treat substitution as a failed decode.
		if strings.ContainsRune(string(decoded), '�') {
			return "", fmt.Errorf("byte outside %s", cm)
		}
		return string(decoded), nil
	}
}

// cleanText normalizes one field: NFKC normalization, non-printable
// stripping, newlines and tabs collapsed into the surrounding text so a
// multi-line value becomes a single line, whitespace runs collapsed.
func cleanText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return ' '
		case unicode.IsGraphic(r):
			return r
		default:
			return -1
		}
	}, s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
