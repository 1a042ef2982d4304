package handler

import (
	"net/http"

	"HealthIntake/model"

	"golang.org/x/text/language"
)

// first entry is the fallback
var languageMatcher = language.NewMatcher([]language.Tag{language.Russian, language.English})

// negotiateLanguage picks ru or en from an explicit choice, then the
// Accept-Language header, then the default
func negotiateLanguage(explicit string, r *http.Request) model.Language {
	tag, _ := language.MatchStrings(languageMatcher, explicit, r.Header.Get("Accept-Language"))
	base, _ := tag.Base()
	return model.ParseLanguage(base.String())
}
