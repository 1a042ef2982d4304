package model

import "strings"

// Category identifies which questionnaire a submission was filled for
type Category string

const (
	CategoryInfant Category = "infant"
	CategoryChild  Category = "child"
	CategoryWoman  Category = "woman"
	CategoryMan    Category = "man"
)

// Categories lists every category in display order
var Categories = []Category{CategoryInfant, CategoryChild, CategoryWoman, CategoryMan}

// ParseCategory returns the category named by s or ErrInvalidCategory
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Language is a supported UI and message language
type Language string

const (
	LanguageRU Language = "ru"
	LanguageEN Language = "en"

	DefaultLanguage = LanguageRU
)

// ParseLanguage maps s onto a supported language, falling back to DefaultLanguage
func ParseLanguage(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEN:
		return LanguageEN
	case LanguageRU:
		return LanguageRU
	}
	return DefaultLanguage
}
