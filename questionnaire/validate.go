package questionnaire

import (
	"math"
	"strconv"
	"strings"

	"HealthIntake/model"
)

// ContactField is the error key reported when no contact method is given
const ContactField = "contact_method"

// Form is a filled questionnaire as submitted by the browser
type Form struct {
	Category   model.Category
	Language   model.Language
	Answers    model.Answers
	Additional map[string]string
	Contact    model.Contact
}

// Validate checks f against the questions of its category. An empty result
// means the form can be accepted.
func (c *Catalog) Validate(f Form) model.FieldErrors {
	errs := model.FieldErrors{}
	msg := c.MessagesFor(f.Language)

	for _, s := range c.Sections(f.Category) {
		for _, q := range s.Questions {
			a, ok := f.Answers[q.ID]
			if q.Required && missing(q, a, ok) {
				if q.Type == TypeCheckbox {
					errs[q.ID] = msg.SelectAtLeastOne
				} else {
					errs[q.ID] = msg.Required
				}
			}
			if ok && q.Additional != nil && q.Additional.Applies(a) {
				key := model.AdditionalKey(q.ID)
				if strings.TrimSpace(f.Additional[key]) == "" {
					errs[key] = msg.Required
				}
			}
		}
	}

	if !f.Contact.HasAny() {
		errs[ContactField] = msg.Required
	}
	return errs
}

func missing(q Question, a model.Answer, present bool) bool {
	if !present {
		return true
	}
	switch q.Type {
	case TypeCheckbox:
		return len(a.Values) == 0 || (!a.Multi && a.Scalar() == "")
	case TypeNumber:
		v := strings.TrimSpace(a.Scalar())
		if v == "" {
			return true
		}
		n, err := strconv.ParseFloat(v, 64)
		return err != nil || math.IsNaN(n)
	default:
		return !a.Answered()
	}
}
