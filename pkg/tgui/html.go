package tgui

import (
	"fmt"
	"html"
	"strings"
)

// H is HTML that is safe to hand to Telegram with ParseMode="HTML".
// Anything typed H is treated as already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes plain text for HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

// Raw marks a string as already-safe HTML. Use sparingly.
func Raw(s string) H { return H(s) }

func tag(name string, inner H) H {
	var b strings.Builder
	b.Grow(len(inner) + 2*len(name) + 5)
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	b.WriteString(string(inner))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
	return H(b.String())
}

func B(s string) H    { return tag("b", Esc(s)) }
func I(s string) H    { return tag("i", Esc(s)) }
func Code(s string) H { return tag("code", Esc(s)) }

// Pre renders a preformatted block. Long content should be split first;
// Telegram wants balanced tags in every message chunk.
func Pre(s string) H {
	return tag("pre", tag("code", Esc(s)))
}

// Link builds an anchor. html.EscapeString covers quotes, so the href
// attribute is safe too.
func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// Mention links a display name to a Telegram user id.
func Mention(name string, userID int64) H {
	return Link(name, fmt.Sprintf("tg://user?id=%d", userID))
}

// JoinH joins non-blank parts with sep.
func JoinH(sep string, parts ...H) H {
	if len(parts) == 0 {
		return ""
	}
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		kept = append(kept, string(p))
	}
	return H(strings.Join(kept, sep))
}
