package questionnaire

import (
	"strconv"
	"strings"

	"HealthIntake/model"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes s for Telegram's HTML parse mode
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Render formats f as the Telegram HTML message staff receive
func (c *Catalog) Render(f Form) string {
	msg := c.MessagesFor(f.Language)
	var b strings.Builder

	b.WriteString("<b>" + EscapeHTML(msg.Headers[f.Category]) + "</b>\n")

	number := 1
	numbering := false
	for _, s := range c.Sections(f.Category) {
		if !sectionAnswered(s, f.Answers) {
			continue
		}
		b.WriteString("<b>" + EscapeHTML(s.Title.In(f.Language)) + "</b>\n")

		for _, q := range s.Questions {
			a, ok := f.Answers[q.ID]
			if !ok || !a.Answered() {
				continue
			}
			if q.ID == c.NumberingFrom {
				numbering = true
				number = 1
			}

			label := "<b>" + EscapeHTML(q.Label.In(f.Language)) + "</b>"
			if numbering {
				label = strconv.Itoa(number) + ". " + label
				number++
			}
			b.WriteString(label + "\n")

			b.WriteString(EscapeHTML(answerText(q, a, f.Language)))
			if extra := strings.TrimSpace(f.Additional[model.AdditionalKey(q.ID)]); extra != "" {
				b.WriteString(" <i>(" + EscapeHTML(extra) + ")</i>")
			}
			b.WriteString("\n")
		}
	}

	if contacts := contactLines(f.Contact, msg); len(contacts) > 0 {
		b.WriteString("<b>" + EscapeHTML(msg.Contacts) + "</b>\n")
		for _, line := range contacts {
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func sectionAnswered(s Section, answers model.Answers) bool {
	for _, q := range s.Questions {
		if a, ok := answers[q.ID]; ok && a.Answered() {
			return true
		}
	}
	return false
}

func answerText(q Question, a model.Answer, lang model.Language) string {
	if a.Multi {
		labels := make([]string, 0, len(a.Values))
		for _, v := range a.Values {
			if l, ok := q.OptionLabel(v, lang); ok {
				labels = append(labels, l)
			} else {
				labels = append(labels, v)
			}
		}
		return strings.Join(labels, ", ")
	}
	if l, ok := q.OptionLabel(a.Scalar(), lang); ok {
		return l
	}
	return a.Scalar()
}

func contactLines(c model.Contact, msg Messages) []string {
	var lines []string
	if tg := cleanHandle(c.Telegram); tg != "" {
		link := "https://t.me/" + tg
		lines = append(lines, "Telegram: @"+EscapeHTML(tg)+"\n"+anchor(link, link))
	}
	if ig := cleanHandle(c.Instagram); ig != "" {
		link := "https://instagram.com/" + ig
		lines = append(lines, "Instagram: @"+EscapeHTML(ig)+"\n"+anchor(link, link))
	}
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		lines = append(lines, EscapeHTML(msg.Phone)+": "+anchor("tel:"+phone, phone))
	}
	return lines
}

func cleanHandle(v string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "@"))
}

func anchor(href, text string) string {
	return `<a href="` + EscapeHTML(href) + `">` + EscapeHTML(text) + "</a>"
}
