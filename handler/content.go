package handler

import (
	"net/http"

	"github.com/rs/zerolog/hlog"
)

func (s *Server) handleContentGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.content.Get())
}

func (s *Server) handleContentUpdate(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.require(w, r); err != nil {
		return
	}
	patch := map[string]string{}
	if err := decodeJSON(w, r, s.maxBody, &patch); err != nil {
		badBody(w, err)
		return
	}
	next := s.content.Update(patch)
	hlog.FromRequest(r).Info().Int("keys", len(patch)).Msg("site content updated")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"content": next,
	})
}
