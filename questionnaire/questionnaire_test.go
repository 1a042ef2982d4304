package questionnaire

import (
	"encoding/json"
	"testing"

	"HealthIntake/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
numbering_from: digestion
messages:
  ru: {required: "Обязательное поле", select_at_least_one: "Выберите", contacts: "Контакты", phone: "Телефон", headers: {infant: I, child: C, woman: "Ж", man: M}}
  en: {required: "Required", select_at_least_one: "Select one", contacts: "Contacts", phone: "Phone", headers: {infant: I, child: C, woman: "W & co", man: M}}
categories: {infant: [a], child: [a], woman: [a, b], man: [a]}
sections:
  - id: a
    title: {ru: "Раздел А", en: "Section A"}
    questions:
      - {id: name, type: text, required: true, label: {ru: "Имя", en: "Name"}}
      - id: operations
        type: radio
        required: true
        label: {ru: "Операции", en: "Operations"}
        options: [{value: "yes", label: {ru: "Да", en: "Yes"}}, {value: "no", label: {ru: "Нет", en: "No"}}]
        additional: {equals: "yes"}
  - id: b
    title: {ru: "Раздел Б", en: "Section B"}
    questions:
      - {id: digestion, type: radio, label: {ru: "Пищеварение", en: "Digestion"}, options: [{value: "good", label: {ru: "Хорошо", en: "Good"}}]}
      - id: allergies
        type: checkbox
        required: true
        label: {ru: "Аллергии", en: "Allergies"}
        options: [{value: "pollen", label: {ru: "Пыльца", en: "Pollen"}}, {value: "other", label: {ru: "Другое", en: "Other"}}]
        additional: {includes: "other"}
      - {id: age, type: number, required: true, label: {ru: "Возраст", en: "Age"}}
`

func parseTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Parse([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	for _, cat := range model.Categories {
		assert.NotEmpty(t, c.Sections(cat), "category %s", cat)
		for _, lang := range []model.Language{model.LanguageRU, model.LanguageEN} {
			assert.NotEmpty(t, c.MessagesFor(lang).Headers[cat], "header %s/%s", cat, lang)
		}
	}
	_, ok := c.Question(model.CategoryWoman, "pregnancy_problems")
	assert.True(t, ok)
	_, ok = c.Question(model.CategoryMan, "pregnancy_problems")
	assert.False(t, ok)
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "{"},
		{"no default messages", "messages: {en: {}}"},
		{"unknown section", `
messages: {ru: {}}
categories: {infant: [x], child: [], woman: [], man: []}
`},
		{"missing category", `
messages: {ru: {}}
categories: {infant: [], child: [], woman: []}
`},
		{"bad type", `
messages: {ru: {}}
categories: {infant: [a], child: [], woman: [], man: []}
sections: [{id: a, questions: [{id: q, type: slider}]}]
`},
		{"choice without options", `
messages: {ru: {}}
categories: {infant: [a], child: [], woman: [], man: []}
sections: [{id: a, questions: [{id: q, type: radio}]}]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateEmptyForm(t *testing.T) {
	c := MustLoad()
	errs := c.Validate(Form{Category: model.CategoryWoman, Language: model.LanguageRU})

	assert.Equal(t, model.FieldErrors{
		"name":               "Обязательное поле",
		"age":                "Обязательное поле",
		"operations":         "Обязательное поле",
		"allergies":          "Выберите хотя бы один вариант",
		"pregnancy_problems": "Обязательное поле",
		"digestion":          "Обязательное поле",
		"how_learned":        "Обязательное поле",
		ContactField:         "Обязательное поле",
	}, errs)
}

func validWomanForm() Form {
	return Form{
		Category: model.CategoryWoman,
		Language: model.LanguageEN,
		Answers: model.Answers{
			"name":               model.Text("Anna"),
			"age":                model.Text(" 34 "),
			"operations":         model.Text("no"),
			"allergies":          model.Choices("none"),
			"pregnancy_problems": model.Text("no"),
			"digestion":          model.Text("good"),
			"how_learned":        model.Text("instagram"),
		},
		Additional: map[string]string{},
		Contact:    model.Contact{Telegram: "@anna"},
	}
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	assert.Empty(t, MustLoad().Validate(validWomanForm()))
}

func TestValidateConditionalAdditional(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		answer model.Answer
		want   string
	}{
		{"operations yes", "operations", model.Text("yes"), "operations_additional"},
		{"pregnancy problems yes", "pregnancy_problems", model.Text("yes"), "pregnancy_problems_additional"},
		{"injury selected", "injuries", model.Choices("fractures"), "injuries_additional"},
		{"injury mixed with no issues", "injuries", model.Choices("no_issues", "sprains"), "injuries_additional"},
		{"other allergy", "allergies", model.Choices("pollen", "other"), "allergies_additional"},
		{"other skin condition", "skin_condition", model.Choices("other"), "skin_condition_additional"},
		{"recommendation", "how_learned", model.Text("recommendation"), "how_learned_additional"},
	}
	c := MustLoad()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validWomanForm()
			f.Answers[tt.field] = tt.answer

			errs := c.Validate(f)
			assert.Equal(t, model.FieldErrors{tt.want: "This field is required"}, errs)

			f.Additional[tt.want] = "  details "
			assert.Empty(t, c.Validate(f))

			f.Additional[tt.want] = "   "
			assert.Contains(t, c.Validate(f), tt.want)
		})
	}
}

func TestValidateNoAdditionalNeeded(t *testing.T) {
	c := MustLoad()
	f := validWomanForm()
	f.Answers["injuries"] = model.Choices("no_issues")
	f.Answers["allergies"] = model.Choices("pollen")
	assert.Empty(t, c.Validate(f))
}

func TestValidateNumbers(t *testing.T) {
	c := MustLoad()
	for _, v := range []string{"abc", "", "  ", "NaN", "1,5"} {
		f := validWomanForm()
		f.Answers["age"] = model.Text(v)
		assert.Contains(t, c.Validate(f), "age", "value %q", v)
	}
	for _, v := range []string{"0", "1.5", "1e2", "-3"} {
		f := validWomanForm()
		f.Answers["age"] = model.Text(v)
		assert.NotContains(t, c.Validate(f), "age", "value %q", v)
	}
}

func TestValidateCheckboxAsString(t *testing.T) {
	c := MustLoad()
	f := validWomanForm()
	f.Answers["allergies"] = model.Text("")
	assert.Equal(t, "Please select at least one option", c.Validate(f)["allergies"])

	f.Answers["allergies"] = model.Choices()
	assert.Contains(t, c.Validate(f), "allergies")
}

func TestValidateContact(t *testing.T) {
	c := MustLoad()
	f := validWomanForm()
	f.Contact = model.Contact{Telegram: "  ", Instagram: "", Phone: " "}
	assert.Contains(t, c.Validate(f), ContactField)

	f.Contact = model.Contact{Phone: "+7 999"}
	assert.NotContains(t, c.Validate(f), ContactField)
}

func TestRender(t *testing.T) {
	c := parseTestCatalog(t)
	f := Form{
		Category: model.CategoryWoman,
		Language: model.LanguageEN,
		Answers: model.Answers{
			"name":       model.Text("Anna <3"),
			"operations": model.Text("yes"),
			"digestion":  model.Text("good"),
			"allergies":  model.Choices("pollen", "dust"),
			"age":        model.Text("34"),
		},
		Additional: map[string]string{"operations_additional": " appendix ", "digestion_additional": "  "},
		Contact:    model.Contact{Telegram: "@anna", Phone: " +1 555 "},
	}

	want := "<b>W &amp; co</b>\n" +
		"<b>Section A</b>\n" +
		"<b>Name</b>\n" +
		"Anna &lt;3\n" +
		"<b>Operations</b>\n" +
		"Yes <i>(appendix)</i>\n" +
		"<b>Section B</b>\n" +
		"1. <b>Digestion</b>\n" +
		"Good\n" +
		"2. <b>Allergies</b>\n" +
		"Pollen, dust\n" +
		"3. <b>Age</b>\n" +
		"34\n" +
		"<b>Contacts</b>\n" +
		"Telegram: @anna\n<a href=\"https://t.me/anna\">https://t.me/anna</a>\n" +
		"Phone: <a href=\"tel:+1 555\">+1 555</a>\n"
	assert.Equal(t, want, c.Render(f))
}

func TestRenderSkipsUnansweredSectionsAndQuestions(t *testing.T) {
	c := parseTestCatalog(t)
	f := Form{
		Category: model.CategoryWoman,
		Language: model.LanguageRU,
		Answers: model.Answers{
			"name":      model.Text("Анна"),
			"digestion": model.Text("  "),
			"allergies": model.Choices(),
		},
		Contact: model.Contact{Instagram: "@Anna.K"},
	}

	want := "<b>Ж</b>\n" +
		"<b>Раздел А</b>\n" +
		"<b>Имя</b>\n" +
		"Анна\n" +
		"<b>Контакты</b>\n" +
		"Instagram: @Anna.K\n<a href=\"https://instagram.com/Anna.K\">https://instagram.com/Anna.K</a>\n"
	assert.Equal(t, want, c.Render(f))
}

func TestRenderNumberingStartsAtDigestionOnlyWhenAnswered(t *testing.T) {
	c := parseTestCatalog(t)
	f := Form{
		Category: model.CategoryWoman,
		Language: model.LanguageEN,
		Answers: model.Answers{
			"allergies": model.Choices("other"),
			"age":       model.Text("5"),
		},
	}
	out := c.Render(f)
	assert.Contains(t, out, "<b>Allergies</b>\nOther\n")
	assert.NotContains(t, out, "1. ")
	assert.NotContains(t, out, "Contacts")
}

func TestRenderEscapesContactLinks(t *testing.T) {
	c := parseTestCatalog(t)
	out := c.Render(Form{
		Category: model.CategoryMan,
		Language: model.LanguageEN,
		Contact:  model.Contact{Telegram: `x"><script>`},
	})
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `href="https://t.me/x&quot;&gt;&lt;script&gt;"`)
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "&amp;&lt;&gt;&quot;&#39;", EscapeHTML(`&<>"'`))
}

func TestLocalize(t *testing.T) {
	c := MustLoad()
	v := c.Localize(model.CategoryInfant, model.LanguageEN)

	assert.Equal(t, "Infant Questionnaire", v.Title)
	require.NotEmpty(t, v.Sections)
	assert.Equal(t, "infant_general", v.Sections[0].ID)
	assert.Equal(t, "About the baby", v.Sections[0].Title)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"additionalWhen":{"equals":"yes"}`)
}
