package server

import (
	"encoding/json"
	"net/http"

	"github.com/matzehuels/tokenfield/pkg/buildinfo"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
	"github.com/matzehuels/tokenfield/pkg/render"
)

// LayoutRequest is the body of POST /v1/layout.
type LayoutRequest struct {
	Scene   pipeline.Scene   `json:"scene"`
	Actors  []pipeline.Actor `json:"actors"`
	Options pipeline.Options `json:"options"`
}

// LayoutResponse is the JSON answer to POST /v1/layout.
type LayoutResponse struct {
	Area       layout.Area        `json:"area"`
	Placements []layout.Placement `json:"placements"`
	Groups     []layout.Group     `json:"groups"`
	Tokens     []pipeline.Token   `json:"tokens"`
	Skipped    int                `json:"skipped,omitempty"`
	Overflow   string             `json:"overflow,omitempty"`
	Cached     bool               `json:"cached"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
	buildinfo.Info
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Info: buildinfo.Get()})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.runner.Preview(r.Context(), req.Scene, req.Actors, req.Options)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(render.SVG(res.Layout, res.Area, req.Scene.GridSize, render.WithGrid(), render.WithTitle(req.Scene.Name)))
		return
	}

	resp := LayoutResponse{
		Area:       res.Area,
		Placements: res.Layout.Placements,
		Groups:     res.Layout.Groups,
		Tokens:     res.Tokens,
		Skipped:    res.Summary.Skipped,
		Cached:     res.CacheInfo.LayoutHit,
	}
	if res.Overflow != nil {
		resp.Overflow = res.Overflow.Error()
	}
	if resp.Placements == nil {
		resp.Placements = []layout.Placement{}
	}
	if resp.Tokens == nil {
		resp.Tokens = []pipeline.Token{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req pipeline.TokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	tok, err := pipeline.NewToken(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body"))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrCodeItemTooLarge), errors.Is(err, errors.ErrCodeVerticalOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrCodeInvalidInput),
		errors.Is(err, errors.ErrCodeInvalidName),
		errors.Is(err, errors.ErrCodeInvalidFormat),
		errors.Is(err, errors.ErrCodeConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
