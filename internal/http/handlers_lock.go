package http

import (
	"net/http"

	"bilant/internal/lock"
	"bilant/internal/log"
)

type lockView struct {
	Enabled        bool       `json:"enabled"`
	State          lock.State `json:"state"`
	TimeoutSeconds int        `json:"timeoutSeconds"`
}

func (s *Server) lockState() lockView {
	return lockView{
		Enabled:        s.idle.Enabled(),
		State:          s.idle.State(),
		TimeoutSeconds: int(s.idle.Timeout().Seconds()),
	}
}

func (s *Server) handleLockState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.lockState())
}

func (s *Server) handleLockNow(w http.ResponseWriter, r *http.Request) {
	s.idle.Lock()
	writeJSON(w, r, http.StatusOK, s.lockState())
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.idle.Unlock(body.Password); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Unlock rejected",
			log.FieldClientIP, s.detector.ExtractClientIP(r))
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.lockState())
}

// handleActivity rearms the idle timer. While locked it changes nothing and
// reports the locked state.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	s.idle.Activity()
	writeJSON(w, r, http.StatusOK, s.lockState())
}
