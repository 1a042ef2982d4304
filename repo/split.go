package repo

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength is the Telegram limit for one text message
const MaxMessageLength = 4096

// room left in every piece of an over-long line for re-opened and closing tags
const tagReserve = 16

// SplitMessage cuts HTML text into chunks of at most limit characters. Cuts
// fall on line boundaries; a single line longer than limit is cut at
// whitespace (or anywhere outside a tag or entity) and open <b>/<i> tags are
// closed before the cut and re-opened after it.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		n := utf8.RuneCountInString(line)
		if n > limit {
			flush()
			chunks = append(chunks, splitLongLine(line, limit)...)
			continue
		}
		if curLen+n > limit {
			flush()
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

type token struct {
	text  string
	width int
	space bool
	// open or close is set for tracked formatting tags
	open, close string
}

var trackedTags = map[string]bool{"b": true, "i": true, "u": true, "s": true}

func tokenize(s string) []token {
	var out []token
	for i := 0; i < len(s); {
		switch s[i] {
		case '<':
			if j := strings.IndexByte(s[i:], '>'); j > 0 {
				t := token{text: s[i : i+j+1]}
				t.width = len(t.text)
				name := strings.Trim(t.text, "<>")
				if strings.HasPrefix(name, "/") {
					if trackedTags[name[1:]] {
						t.close = name[1:]
					}
				} else if trackedTags[name] {
					t.open = name
				}
				out = append(out, t)
				i += j + 1
				continue
			}
		case '&':
			if j := strings.IndexByte(s[i:], ';'); j > 0 && j <= 8 {
				out = append(out, token{text: s[i : i+j+1], width: j + 1})
				i += j + 1
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		out = append(out, token{text: s[i : i+size], width: 1, space: unicode.IsSpace(r)})
		i += size
	}
	return out
}

// applyTags returns the open tag stack after tokens, starting from stack
func applyTags(stack []string, tokens []token) []string {
	out := append([]string(nil), stack...)
	for _, t := range tokens {
		switch {
		case t.open != "":
			out = append(out, t.open)
		case t.close != "":
			for k := len(out) - 1; k >= 0; k-- {
				if out[k] == t.close {
					out = append(out[:k], out[k+1:]...)
					break
				}
			}
		}
	}
	return out
}

func openers(stack []string) string {
	var b strings.Builder
	for _, name := range stack {
		b.WriteString("<" + name + ">")
	}
	return b.String()
}

func closers(stack []string) string {
	var b strings.Builder
	for k := len(stack) - 1; k >= 0; k-- {
		b.WriteString("</" + stack[k] + ">")
	}
	return b.String()
}

func joinTokens(tokens []token) (string, int) {
	var b strings.Builder
	w := 0
	for _, t := range tokens {
		b.WriteString(t.text)
		w += t.width
	}
	return b.String(), w
}

func splitLongLine(line string, limit int) []string {
	budget := limit - tagReserve
	if budget < 1 {
		budget = 1
	}

	var (
		pieces []string
		stack  []string
		piece  []token
		width  int
	)
	prefixWidth := 0

	for _, tok := range tokenize(line) {
		for len(piece) > 0 && prefixWidth+width+tok.width > budget {
			cut := len(piece)
			for k := len(piece) - 1; k > 0; k-- {
				if piece[k].space {
					cut = k + 1
					break
				}
			}
			head, rest := piece[:cut], append([]token(nil), piece[cut:]...)

			text, _ := joinTokens(head)
			after := applyTags(stack, head)
			pieces = append(pieces, openers(stack)+text+closers(after))

			stack = after
			prefixWidth = len(openers(stack))
			piece = rest
			_, width = joinTokens(piece)
		}
		piece = append(piece, tok)
		width += tok.width
	}
	if len(piece) > 0 {
		text, _ := joinTokens(piece)
		pieces = append(pieces, openers(stack)+text)
	}
	return pieces
}
