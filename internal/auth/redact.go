package auth

import (
	"io"
	"regexp"
)

var (
	bearerRe = regexp.MustCompile(`Bearer [\w\-.]+`)
	tokenRe  = regexp.MustCompile(`(?i)(token["']?\s?[:=]\s?["']?)[\w\-.]+`)
)

// Redact hides bearer credentials and token fields in s.
func Redact(s string) string {
	s = bearerRe.ReplaceAllString(s, "Bearer ***")
	return tokenRe.ReplaceAllString(s, "${1}***")
}

// MaskLeft replaces all but the last four runes of s with X.
func MaskLeft(s string) string {
	rs := []rune(s)
	for i := 0; i < len(rs)-4; i++ {
		rs[i] = 'X'
	}
	return string(rs)
}

// RedactingWriter redacts credentials from everything written through it.
type RedactingWriter struct {
	W io.Writer
}

func (w RedactingWriter) Write(p []byte) (int, error) {
	if _, err := w.W.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
