package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Answer holds the value given to one question. Single-choice and free-text
// questions carry one value, checkbox questions a list.
type Answer struct {
	Values []string
	Multi  bool
}

// Text builds a single-value answer
func Text(v string) Answer {
	return Answer{Values: []string{v}}
}

// Choices builds a multi-value answer
func Choices(v ...string) Answer {
	if v == nil {
		v = []string{}
	}
	return Answer{Values: v, Multi: true}
}

// Scalar returns the single value, or "" when there is none
func (a Answer) Scalar() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

// Answered reports whether the answer carries anything worth rendering
func (a Answer) Answered() bool {
	if a.Multi {
		return len(a.Values) > 0
	}
	return strings.TrimSpace(a.Scalar()) != ""
}

// Contains reports whether v is one of the answer values
func (a Answer) Contains(v string) bool {
	for _, x := range a.Values {
		if x == v {
			return true
		}
	}
	return false
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Scalar())
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Answer{}
	case b[0] == '[':
		var vs []string
		if err := json.Unmarshal(b, &vs); err != nil {
			return fmt.Errorf("answer list: %w", err)
		}
		*a = Choices(vs...)
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Text(s)
	case b[0] == 't' || b[0] == 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*a = Text(fmt.Sprint(v))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("unsupported answer %s", b)
		}
		*a = Text(n.String())
	}
	return nil
}

// Answers maps question ids to answers
type Answers map[string]Answer

// Keys returns the question ids in sorted order
func (a Answers) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AdditionalKey is the key of the free-text field attached to question id
func AdditionalKey(questionID string) string {
	return questionID + "_additional"
}

// Submission is a stored questionnaire
type Submission struct {
	ID         string            `json:"id"`
	Category   Category          `json:"type"`
	Language   Language          `json:"language"`
	Answers    Answers           `json:"formData"`
	Additional map[string]string `json:"additionalData"`
	Contact    Contact           `json:"contactData"`
	Rendered   string            `json:"markdown"`
	MessageIDs []int             `json:"telegramMessageIds,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Summary returns the lookup view of the submission
func (s Submission) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Category:  s.Category,
		CreatedAt: s.CreatedAt,
		Contact:   s.Contact,
	}
}

// Summary is what a contact lookup reveals about a submission
type Summary struct {
	ID        string    `json:"id"`
	Category  Category  `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Contact   Contact   `json:"contactData"`
}

// SortNewestFirst orders summaries by creation time, newest first
func SortNewestFirst(s []Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].CreatedAt.After(s[j].CreatedAt)
	})
}
