package model

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrSubmissionNotFound   = errors.New("questionnaire not found")
	ErrInvalidCategory      = errors.New("unknown questionnaire type")
	ErrContactRequired      = errors.New("at least one contact method is required")
	ErrInvalidMessageID     = errors.New("telegram message id must be a positive number")
	ErrChannelNotConfigured = errors.New("telegram credentials not configured")
	ErrDeliveryFailed       = errors.New("failed to deliver questionnaire")
)

// FieldErrors maps a form field id to a localized error message
type FieldErrors map[string]string

// ValidationError is returned when a submission fails form validation
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid questionnaire: " + strings.Join(keys, ", ")
}
