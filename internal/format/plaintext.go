// Package format converts model-written markup for text/plain mail bodies.
package format

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	markupRe   = regexp.MustCompile(`(?i)</?(?:p|br|div|span|ul|ol|li|b|i|u|strong|em|a|table|thead|tbody|tr|td|th|h[1-6]|html|head|body|script|style|blockquote|pre|code|font|hr)(?:\s[^>]*)?/?>`)
)

// markup is the set of tags PlainText interprets. Anything else that looks
// like a tag, such as <bob@example.com>, is kept as written.
var markup = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Div: true, atom.Span: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true,
	atom.B: true, atom.I: true, atom.U: true, atom.Strong: true, atom.Em: true, atom.A: true,
	atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Html: true, atom.Head: true, atom.Body: true, atom.Script: true, atom.Style: true,
	atom.Blockquote: true, atom.Pre: true, atom.Code: true, atom.Font: true, atom.Hr: true,
}

// PlainText turns an HTML fragment into plain text: tags are dropped, line
// and paragraph breaks become newlines and entities are decoded.
// Text without a known HTML tag is returned unchanged.
func PlainText(s string) string {
	if !markupRe.MatchString(s) {
		return s
	}

	var (
		b    strings.Builder
		skip int
	)

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		raw := string(z.Raw())
		tok := z.Token()
		switch tt {
		case html.TextToken:
			if skip == 0 {
				b.WriteString(tok.Data)
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			if !markup[tok.DataAtom] {
				if skip == 0 {
					b.WriteString(raw)
				}
				continue
			}
			writeBreak(&b, tt, tok.DataAtom, &skip)
		}
	}

	return strings.TrimSpace(blankRunRe.ReplaceAllString(b.String(), "\n\n"))
}

func writeBreak(b *strings.Builder, tt html.TokenType, a atom.Atom, skip *int) {
	if tt == html.EndTagToken {
		switch a {
		case atom.Script, atom.Style:
			if *skip > 0 {
				*skip--
			}
		case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Ul, atom.Ol, atom.Table:
			b.WriteString("\n\n")
		case atom.Div, atom.Li, atom.Tr:
			b.WriteString("\n")
		}
		return
	}

	switch a {
	case atom.Script, atom.Style:
		if tt == html.StartTagToken {
			*skip++
		}
	case atom.Br, atom.Hr:
		b.WriteString("\n")
	case atom.Li:
		b.WriteString("- ")
	}
}
