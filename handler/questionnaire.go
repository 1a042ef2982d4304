package handler

import (
	"errors"
	"math"
	"net/http"

	"HealthIntake/model"
	"HealthIntake/repo"
	"HealthIntake/service"

	"github.com/rs/zerolog/hlog"
)

// saveRequest is the submit body. Contact is a pointer so a missing
// contactData object can be told apart from an empty one.
type saveRequest struct {
	Type       string            `json:"type"`
	Language   string            `json:"language"`
	FormData   model.Answers     `json:"formData"`
	Additional map[string]string `json:"additionalData"`
	Contact    *model.Contact    `json:"contactData"`
	// rendered text supplied by older clients; the server always renders its own
	Markdown string `json:"markdown,omitempty"`
}

func (req saveRequest) draft(lang model.Language) service.Draft {
	d := service.Draft{
		Type:       req.Type,
		Language:   string(lang),
		FormData:   req.FormData,
		Additional: req.Additional,
	}
	if req.Contact != nil {
		d.Contact = *req.Contact
	}
	return d
}

// submissionView is a stored questionnaire as the API returns it
type submissionView struct {
	model.Submission
	TelegramMessageID *int `json:"telegramMessageId,omitempty"`
}

func newSubmissionView(sub *model.Submission) submissionView {
	v := submissionView{Submission: *sub}
	if len(sub.MessageIDs) > 0 {
		id := sub.MessageIDs[0]
		v.TelegramMessageID = &id
	}
	return v
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	cat, err := model.ParseCategory(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown questionnaire type")
		return
	}
	lang := negotiateLanguage(r.URL.Query().Get("lang"), r)
	writeJSON(w, http.StatusOK, s.intake.Catalog().Localize(cat, lang))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		badBody(w, err)
		return
	}
	text, errs, err := s.intake.Preview(req.draft(negotiateLanguage(req.Language, r)))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid questionnaire type")
		return
	}
	if errs == nil {
		errs = model.FieldErrors{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"errors":   errs,
		"markdown": text,
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		badBody(w, err)
		return
	}
	if req.Type == "" || req.FormData == nil || req.Contact == nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	sub, err := s.intake.Submit(r.Context(), req.draft(negotiateLanguage(req.Language, r)))
	var verr *model.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, "Invalid questionnaire type")
		return
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   "Validation failed",
			"errors":  verr.Fields,
		})
		return
	case errors.Is(err, model.ErrDeliveryFailed):
		hlog.FromRequest(r).Error().Err(err).Msg("questionnaire not delivered")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "Failed to send questionnaire",
			"message": err.Error(),
		})
		return
	default:
		writeFailure(w, r, "Failed to save questionnaire", err)
		return
	}

	view := newSubmissionView(sub)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"id":                sub.ID,
		"telegramMessageId": view.TelegramMessageID,
		"message":           "Questionnaire saved successfully",
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Questionnaire ID is required")
		return
	}
	sub, err := s.intake.Get(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrSubmissionNotFound):
		writeError(w, http.StatusNotFound, "Questionnaire not found")
	case err != nil:
		writeFailure(w, r, "Failed to get questionnaire", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    newSubmissionView(sub),
		})
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Questionnaire ID is required")
		return
	}
	err := s.intake.Delete(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrSubmissionNotFound):
		writeError(w, http.StatusNotFound, "Questionnaire not found")
	case err != nil:
		writeFailure(w, r, "Failed to delete questionnaire", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Questionnaire deleted successfully",
		})
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var contact model.Contact
	if err := decodeJSON(w, r, s.maxBody, &contact); err != nil {
		badBody(w, err)
		return
	}
	found, err := s.intake.Search(r.Context(), contact)
	switch {
	case errors.Is(err, model.ErrContactRequired):
		writeError(w, http.StatusBadRequest, "At least one contact method is required")
	case err != nil:
		writeFailure(w, r, "Failed to search questionnaires", err)
	default:
		writeSummaries(w, found)
	}
}

func (s *Server) handleByIDs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs any `json:"ids"`
	}
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		badBody(w, err)
		return
	}
	// anything but a list of strings is treated as an empty list
	list, _ := req.IDs.([]any)
	ids := make([]string, 0, len(list))
	for _, v := range list {
		if id, ok := v.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	found, err := s.intake.GetMany(r.Context(), ids)
	if err != nil {
		writeFailure(w, r, "Failed to get questionnaires", err)
		return
	}
	writeSummaries(w, found)
}

func writeSummaries(w http.ResponseWriter, found []model.Summary) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"count":          len(found),
		"questionnaires": found,
	})
}

func (s *Server) handleSetMessageID(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        any `json:"id"`
		MessageID any `json:"telegramMessageId"`
	}
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		badBody(w, err)
		return
	}
	id, ok := req.ID.(string)
	if !ok || id == "" {
		writeError(w, http.StatusBadRequest, "Questionnaire ID is required")
		return
	}
	mid, ok := positiveInt(req.MessageID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Telegram message ID is required")
		return
	}
	err := s.intake.SetMessageID(r.Context(), id, mid)
	switch {
	case errors.Is(err, model.ErrSubmissionNotFound):
		writeError(w, http.StatusNotFound, "Questionnaire not found")
	case err != nil:
		writeFailure(w, r, "Failed to update message ID", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Message ID updated successfully",
		})
	}
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID any `json:"messageId"`
	}
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		badBody(w, err)
		return
	}
	mid, ok := positiveInt(req.MessageID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Message ID is required and must be a number",
		})
		return
	}

	err := s.intake.DeleteMessage(r.Context(), mid)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Telegram message deleted successfully",
		})
	case errors.Is(err, model.ErrChannelNotConfigured):
		hlog.FromRequest(r).Error().Msg("telegram credentials not configured")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Telegram credentials not configured",
		})
	case repo.IsAPIError(err):
		// the chat answered; report its refusal without failing the request
		hlog.FromRequest(r).Warn().Err(err).Int("message_id", mid).Msg("telegram refused to delete message")
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	default:
		hlog.FromRequest(r).Error().Err(err).Int("message_id", mid).Msg("failed to delete telegram message")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	}
}

// positiveInt accepts a JSON number that is a whole number above zero
func positiveInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
