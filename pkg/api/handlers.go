package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/places"
)

type placesResponse struct {
	Places      []*domain.Place `json:"places"`
	Selected    int             `json:"selected"`
	RemoteDone  bool            `json:"remote_done"`
	RemoteError string          `json:"remote_error,omitempty"`
}

type selectRequest struct {
	Index *int `json:"index" validate:"required"`
}

type keypadRequest struct {
	Keys   string `json:"keys" validate:"omitempty,max=16"`
	Delete int    `json:"delete" validate:"gte=0,lte=16"`
	Toggle bool   `json:"toggle"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getPlaces runs a new search. lat, lon and accuracy update the location
// when given; wait=true holds the response until remote results are in.
func (s *Server) getPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("lat") != "" || q.Get("lon") != "" {
		loc, err := parseLocation(q.Get("lat"), q.Get("lon"), q.Get("accuracy"))
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		if err := s.session.SetLocation(loc); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}

	wait := false
	if v := q.Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, s.logger, fmt.Errorf("%w: wait must be a boolean", domain.ErrInvalid))
			return
		}
		wait = b
	}

	// remote results keep arriving after we've answered
	search, err := s.session.Search(context.WithoutCancel(r.Context()), q.Get("filter"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if wait {
		if err := search.Wait(r.Context()); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toPlacesResponse(search))
}

func (s *Server) selectPlace(w http.ResponseWriter, r *http.Request) {
	req := &selectRequest{}
	if !decode(w, r, s.logger, req) {
		return
	}

	s.session.Select(*req.Index)
	writeJSON(w, http.StatusOK, toPlacesResponse(s.session.Places()))
}

func (s *Server) forgetPlace(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, s.logger, fmt.Errorf("%w: index must be a number", domain.ErrInvalid))
		return
	}

	p, err := s.session.Forget(r.Context(), i)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// keypad applies deletes, then key presses, then the sign toggle.
func (s *Server) keypad(w http.ResponseWriter, r *http.Request) {
	req := &keypadRequest{}
	if !decode(w, r, s.logger, req) {
		return
	}

	for i := 0; i < req.Delete; i++ {
		s.session.Delete()
	}
	for _, k := range req.Keys {
		if err := s.session.Press(string(k)); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}
	if req.Toggle {
		s.session.ToggleSign()
	}
	writeJSON(w, http.StatusOK, &amountResponse{Amount: s.session.Amount()})
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.session.Confirm(r.Context())
	if errors.Is(err, domain.ErrFirstPlace) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    err.Error(),
			"selected": s.session.Places().Selected(),
		})
		return
	} else if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt.Transaction)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Sync(r.Context()); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": true})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Status(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func parseLocation(lat, lon, accuracy string) (*domain.Location, error) {
	loc := &domain.Location{}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"lat", lat, &loc.Lat},
		{"lon", lon, &loc.Lon},
		{"accuracy", accuracy, &loc.Accuracy},
	} {
		if f.raw == "" {
			return nil, fmt.Errorf("%w: missing %s", domain.ErrInvalid, f.name)
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s", domain.ErrInvalid, f.name)
		}
		*f.dst = v
	}
	return loc, loc.Validate()
}

func toPlacesResponse(search *places.Search) *placesResponse {
	resp := &placesResponse{
		Places:   search.Items(),
		Selected: search.SelectedIndex(),
	}
	if search.Done() == nil {
		resp.RemoteDone = true
		return resp
	}
	select {
	case <-search.Done():
		resp.RemoteDone = true
		if err := search.RemoteErr(); err != nil {
			resp.RemoteError = err.Error()
		}
	default:
	}
	return resp
}
