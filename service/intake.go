package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"HealthIntake/metrics"
	"HealthIntake/model"
	"HealthIntake/questionnaire"
	"HealthIntake/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Channel delivers rendered questionnaires to staff
type Channel interface {
	Send(ctx context.Context, text string) ([]int, error)
	Delete(ctx context.Context, messageID int) error
}

// Draft is a questionnaire as the browser submits it
type Draft struct {
	Type       string            `json:"type"`
	Language   string            `json:"language"`
	FormData   model.Answers     `json:"formData"`
	Additional map[string]string `json:"additionalData"`
	Contact    model.Contact     `json:"contactData"`
}

// Intake validates, renders, stores and forwards questionnaires
type Intake struct {
	catalog *questionnaire.Catalog
	store   repo.SubmissionStore
	channel Channel
	now     func() time.Time
	newID   func() string
}

func NewIntake(catalog *questionnaire.Catalog, store repo.SubmissionStore, channel Channel) *Intake {
	return &Intake{
		catalog: catalog,
		store:   store,
		channel: channel,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Catalog returns the questionnaire catalog in use
func (s *Intake) Catalog() *questionnaire.Catalog {
	return s.catalog
}

func (s *Intake) form(d Draft) (questionnaire.Form, error) {
	cat, err := model.ParseCategory(d.Type)
	if err != nil {
		return questionnaire.Form{}, err
	}
	f := questionnaire.Form{
		Category:   cat,
		Language:   model.ParseLanguage(d.Language),
		Answers:    d.FormData,
		Additional: d.Additional,
		Contact:    d.Contact,
	}
	if f.Answers == nil {
		f.Answers = model.Answers{}
	}
	if f.Additional == nil {
		f.Additional = map[string]string{}
	}
	return f, nil
}

// Preview validates and renders d without storing it
func (s *Intake) Preview(d Draft) (string, model.FieldErrors, error) {
	f, err := s.form(d)
	if err != nil {
		return "", nil, err
	}
	return s.catalog.Render(f), s.catalog.Validate(f), nil
}

// Submit stores a valid questionnaire and forwards it to the staff chat. A
// questionnaire that cannot be forwarded is not kept, so the user can retry.
func (s *Intake) Submit(ctx context.Context, d Draft) (*model.Submission, error) {
	f, err := s.form(d)
	if err != nil {
		return nil, err
	}
	if errs := s.catalog.Validate(f); len(errs) > 0 {
		metrics.IncValidationFailed()
		return nil, &model.ValidationError{Fields: errs}
	}

	now := s.now().UTC()
	sub := model.Submission{
		ID:         s.newID(),
		Category:   f.Category,
		Language:   f.Language,
		Answers:    f.Answers,
		Additional: f.Additional,
		Contact:    f.Contact,
		Rendered:   s.catalog.Render(f),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("store questionnaire: %w", err)
	}

	ids, err := s.channel.Send(ctx, sub.Rendered)
	if err != nil {
		metrics.IncDeliveryFailed()
		log.Error().Err(err).Str("id", sub.ID).Msg("failed to forward questionnaire, discarding it")
		if derr := s.store.Delete(context.WithoutCancel(ctx), sub.ID); derr != nil {
			log.Error().Err(derr).Str("id", sub.ID).Msg("failed to discard undelivered questionnaire")
		}
		return nil, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
	}
	if len(ids) > 0 {
		if err := s.store.SetMessageIDs(ctx, sub.ID, ids); err != nil {
			log.Error().Err(err).Str("id", sub.ID).Ints("message_ids", ids).Msg("failed to record telegram message ids")
		} else {
			sub.MessageIDs = ids
		}
	}

	metrics.IncSubmission(string(sub.Category))
	log.Info().Str("id", sub.ID).Str("type", string(sub.Category)).Ints("message_ids", ids).Msg("questionnaire saved")
	return &sub, nil
}

func (s *Intake) Get(ctx context.Context, id string) (*model.Submission, error) {
	return s.store.Get(ctx, id)
}

// Delete removes a questionnaire. Its chat messages are removed first, best effort.
func (s *Intake) Delete(ctx context.Context, id string) error {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, mid := range sub.MessageIDs {
		if err := s.channel.Delete(ctx, mid); err != nil {
			log.Warn().Err(err).Str("id", id).Int("message_id", mid).Msg("failed to delete telegram message")
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.IncDeletion()
	log.Info().Str("id", id).Msg("questionnaire deleted")
	return nil
}

// SetMessageID records messageID as the chat message of questionnaire id
func (s *Intake) SetMessageID(ctx context.Context, id string, messageID int) error {
	if messageID <= 0 {
		return model.ErrInvalidMessageID
	}
	return s.store.SetMessageIDs(ctx, id, []int{messageID})
}

// DeleteMessage removes one message from the staff chat
func (s *Intake) DeleteMessage(ctx context.Context, messageID int) error {
	if messageID <= 0 {
		return model.ErrInvalidMessageID
	}
	return s.channel.Delete(ctx, messageID)
}

// Search returns summaries of the questionnaires left under contact, newest first
func (s *Intake) Search(ctx context.Context, contact model.Contact) ([]model.Summary, error) {
	key := contact.Key()
	if key.IsEmpty() {
		return nil, model.ErrContactRequired
	}
	metrics.IncLookup()
	subs, err := s.store.FindByContact(ctx, key)
	if err != nil {
		return nil, err
	}
	return summaries(subs), nil
}

// GetMany returns summaries for the known ids, newest first
func (s *Intake) GetMany(ctx context.Context, ids []string) ([]model.Summary, error) {
	if len(ids) == 0 {
		return []model.Summary{}, nil
	}
	subs, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return summaries(subs), nil
}

func (s *Intake) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Purge removes questionnaires created more than olderThan ago
func (s *Intake) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	n, err := s.store.DeleteBefore(ctx, now.Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge questionnaires: %w", err)
	}
	metrics.AddPurged(n, now)
	if n > 0 {
		log.Info().Int("count", n).Dur("older_than", olderThan).Msg("purged old questionnaires")
	}
	return n, nil
}

// RunRetention purges on every interval tick until ctx is done. A zero
// retention disables it.
func (s *Intake) RunRetention(ctx context.Context, retention, interval time.Duration) error {
	if retention <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Purge(ctx, retention); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("retention pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func summaries(subs []model.Submission) []model.Summary {
	out := make([]model.Summary, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.Summary())
	}
	model.SortNewestFirst(out)
	return out
}
