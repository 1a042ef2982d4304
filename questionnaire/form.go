package questionnaire

import "HealthIntake/model"

// FormView is the localized description of one questionnaire served to the UI
type FormView struct {
	Category model.Category `json:"type"`
	Language model.Language `json:"language"`
	Title    string         `json:"title"`
	Sections []SectionView  `json:"sections"`
}

type SectionView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Questions []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID             string          `json:"id"`
	Type           QuestionType    `json:"type"`
	Required       bool            `json:"required"`
	Label          string          `json:"label"`
	Options        []OptionView    `json:"options,omitempty"`
	AdditionalWhen *AdditionalRule `json:"additionalWhen,omitempty"`
}

type OptionView struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Localize returns the form of category cat in lang
func (c *Catalog) Localize(cat model.Category, lang model.Language) FormView {
	v := FormView{
		Category: cat,
		Language: lang,
		Title:    c.MessagesFor(lang).Headers[cat],
	}
	for _, s := range c.Sections(cat) {
		sv := SectionView{ID: s.ID, Title: s.Title.In(lang)}
		for _, q := range s.Questions {
			qv := QuestionView{
				ID:             q.ID,
				Type:           q.Type,
				Required:       q.Required,
				Label:          q.Label.In(lang),
				AdditionalWhen: q.Additional,
			}
			for _, o := range q.Options {
				qv.Options = append(qv.Options, OptionView{Value: o.Value, Label: o.Label.In(lang)})
			}
			sv.Questions = append(sv.Questions, qv)
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}
