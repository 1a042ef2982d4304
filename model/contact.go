package model

import "strings"

// Contact is how staff can reach the person who filled the questionnaire
type Contact struct {
	Telegram  string `json:"telegram,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// HasAny reports whether at least one contact method is non-blank
func (c Contact) HasAny() bool {
	return strings.TrimSpace(c.Telegram) != "" ||
		strings.TrimSpace(c.Instagram) != "" ||
		strings.TrimSpace(c.Phone) != ""
}

// Key returns the normalized form used for lookups
func (c Contact) Key() ContactKey {
	return ContactKey{
		Telegram:  NormalizeHandle(c.Telegram),
		Instagram: NormalizeHandle(c.Instagram),
		Phone:     NormalizePhone(c.Phone),
	}
}

// ContactKey is a normalized Contact. Empty fields never match.
type ContactKey struct {
	Telegram  string `json:"telegram,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// IsEmpty reports whether no field survived normalization
func (k ContactKey) IsEmpty() bool {
	return k.Telegram == "" && k.Instagram == "" && k.Phone == ""
}

// Matches reports whether any non-empty field of the query equals the same field of k
func (k ContactKey) Matches(query ContactKey) bool {
	return (query.Telegram != "" && k.Telegram == query.Telegram) ||
		(query.Instagram != "" && k.Instagram == query.Instagram) ||
		(query.Phone != "" && k.Phone == query.Phone)
}

// NormalizeHandle trims, strips one leading '@' and lower-cases a username
func NormalizeHandle(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "@")
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizePhone keeps only the digits of a phone number
func NormalizePhone(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
