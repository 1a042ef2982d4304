// Package questionnaire holds the form definitions for every category and
// the rules that validate a filled form and render it for staff.
package questionnaire

import (
	_ "embed"
	"fmt"

	"HealthIntake/model"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// QuestionType is how a question is answered
type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeTextarea QuestionType = "textarea"
	TypeNumber   QuestionType = "number"
	TypeRadio    QuestionType = "radio"
	TypeSelect   QuestionType = "select"
	TypeCheckbox QuestionType = "checkbox"
)

func (t QuestionType) valid() bool {
	switch t {
	case TypeText, TypeTextarea, TypeNumber, TypeRadio, TypeSelect, TypeCheckbox:
		return true
	}
	return false
}

// Localized is a string in every supported language
type Localized map[model.Language]string

// In returns the string for lang, falling back to the default language
func (l Localized) In(lang model.Language) string {
	if s, ok := l[lang]; ok && s != "" {
		return s
	}
	return l[model.DefaultLanguage]
}

type Option struct {
	Value string    `yaml:"value"`
	Label Localized `yaml:"label"`
}

// AdditionalRule says when the free-text field next to a question becomes mandatory
type AdditionalRule struct {
	Equals    string `yaml:"equals,omitempty" json:"equals,omitempty"`
	Includes  string `yaml:"includes,omitempty" json:"includes,omitempty"`
	AnyExcept string `yaml:"any_except,omitempty" json:"anyExcept,omitempty"`
}

// Applies reports whether the rule fires for answer a
func (r AdditionalRule) Applies(a model.Answer) bool {
	switch {
	case r.Equals != "":
		return !a.Multi && a.Scalar() == r.Equals
	case r.Includes != "":
		return a.Contains(r.Includes)
	case r.AnyExcept != "":
		for _, v := range a.Values {
			if v != r.AnyExcept {
				return true
			}
		}
	}
	return false
}

type Question struct {
	ID         string          `yaml:"id"`
	Type       QuestionType    `yaml:"type"`
	Required   bool            `yaml:"required"`
	Label      Localized       `yaml:"label"`
	Options    []Option        `yaml:"options"`
	Additional *AdditionalRule `yaml:"additional"`
}

// OptionLabel returns the localized label of the option with value v
func (q Question) OptionLabel(v string, lang model.Language) (string, bool) {
	for _, o := range q.Options {
		if o.Value == v {
			return o.Label.In(lang), true
		}
	}
	return "", false
}

type Section struct {
	ID        string     `yaml:"id"`
	Title     Localized  `yaml:"title"`
	Questions []Question `yaml:"questions"`
}

// Messages are the server-side strings of one language
type Messages struct {
	Required         string                    `yaml:"required"`
	SelectAtLeastOne string                    `yaml:"select_at_least_one"`
	Contacts         string                    `yaml:"contacts"`
	Phone            string                    `yaml:"phone"`
	Headers          map[model.Category]string `yaml:"headers"`
}

// Catalog is the full set of questionnaires
type Catalog struct {
	NumberingFrom string                                 `yaml:"numbering_from"`
	Messages      map[model.Language]Messages            `yaml:"messages"`
	CategoryOrder map[model.Category][]string            `yaml:"categories"`
	SectionList   []Section                              `yaml:"sections"`
	sections      map[model.Category][]Section           `yaml:"-"`
	questions     map[model.Category]map[string]Question `yaml:"-"`
}

// Load parses the embedded catalog
func Load() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// MustLoad is Load for package-level wiring and tests
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and checks a catalog document
func Parse(doc []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("error parsing catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if _, ok := c.Messages[model.DefaultLanguage]; !ok {
		return fmt.Errorf("catalog has no %q messages", model.DefaultLanguage)
	}
	byID := make(map[string]Section, len(c.SectionList))
	for _, s := range c.SectionList {
		if _, dup := byID[s.ID]; dup {
			return fmt.Errorf("duplicate section %q", s.ID)
		}
		for _, q := range s.Questions {
			if !q.Type.valid() {
				return fmt.Errorf("question %q has unknown type %q", q.ID, q.Type)
			}
			if (q.Type == TypeRadio || q.Type == TypeSelect || q.Type == TypeCheckbox) && len(q.Options) == 0 {
				return fmt.Errorf("question %q needs options", q.ID)
			}
		}
		byID[s.ID] = s
	}

	c.sections = make(map[model.Category][]Section, len(model.Categories))
	c.questions = make(map[model.Category]map[string]Question, len(model.Categories))
	for _, cat := range model.Categories {
		ids, ok := c.CategoryOrder[cat]
		if !ok {
			return fmt.Errorf("category %q has no sections", cat)
		}
		qs := make(map[string]Question)
		for _, id := range ids {
			s, ok := byID[id]
			if !ok {
				return fmt.Errorf("category %q references unknown section %q", cat, id)
			}
			for _, q := range s.Questions {
				if _, dup := qs[q.ID]; dup {
					return fmt.Errorf("category %q has duplicate question %q", cat, q.ID)
				}
				qs[q.ID] = q
			}
			c.sections[cat] = append(c.sections[cat], s)
		}
		c.questions[cat] = qs
	}
	return nil
}

// Sections returns the ordered sections of category cat
func (c *Catalog) Sections(cat model.Category) []Section {
	return c.sections[cat]
}

// Question looks up a question of category cat by id
func (c *Catalog) Question(cat model.Category, id string) (Question, bool) {
	q, ok := c.questions[cat][id]
	return q, ok
}

// MessagesFor returns the server strings for lang
func (c *Catalog) MessagesFor(lang model.Language) Messages {
	if m, ok := c.Messages[lang]; ok {
		return m
	}
	return c.Messages[model.DefaultLanguage]
}
