package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vsariola/chiptone"
	"github.com/vsariola/chiptone/render"
	"github.com/vsariola/chiptone/smf"
	"github.com/vsariola/chiptone/synth"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// chainFromQuery reads ?effect=name repeated, with parameters of the form
// ?name.param=value, e.g. ?effect=echo&echo.feedback=0.5.
func chainFromQuery(r *http.Request) (synth.Chain, error) {
	q := r.URL.Query()
	var chain synth.Chain
	for _, name := range q["effect"] {
		params, err := effectParams(q, name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, synth.ParseEffect(name, params))
	}
	return chain, nil
}

func effectParams(q map[string][]string, effect string) (map[string]float64, error) {
	params := map[string]float64{}
	prefix := effect + "."
	for k, vs := range q {
		if len(k) <= len(prefix) || k[:len(prefix)] != prefix || len(vs) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(vs[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %v", chiptone.ErrInvalidParameter, k, err)
		}
		params[k[len(prefix):]] = v
	}
	return params, nil
}

func (s *Server) handleRenderSong(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	song, err := chiptone.UnmarshalSong(data)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", chiptone.ErrInvalidParameter, err))
		return
	}
	chain, err := chainFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	buf, err := render.Song(r.Context(), &song, chain, s.config.Render)
	s.writeWav(w, r, buf, err)
}

func (s *Server) handleRenderGrid(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	grid, err := chiptone.UnmarshalGrid(data)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", chiptone.ErrInvalidParameter, err))
		return
	}
	loops := 1
	if l := r.URL.Query().Get("loops"); l != "" {
		if loops, err = strconv.Atoi(l); err != nil {
			s.fail(w, r, fmt.Errorf("%w: loops: %v", chiptone.ErrInvalidParameter, err))
			return
		}
	}
	chain, err := chainFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	buf, err := render.Grid(r.Context(), &grid, loops, chain, s.config.Render)
	s.writeWav(w, r, buf, err)
}

func (s *Server) handleRenderSoundEffect(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	params, err := chiptone.UnmarshalSoundEffect(data)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", chiptone.ErrInvalidParameter, err))
		return
	}
	chain, err := chainFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	buf, err := render.SoundEffect(r.Context(), params, chain, s.config.Render)
	s.writeWav(w, r, buf, err)
}

// handleEffect applies one effect to an uploaded .wav recording. Query
// parameters are the effect parameters, e.g. /fx/echo?feedback=0.5.
func (s *Server) handleEffect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "effect")
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	src, err := chiptone.ReadWav(bytes.NewReader(data))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", chiptone.ErrInvalidParameter, err))
		return
	}
	params := map[string]float64{}
	for k, vs := range r.URL.Query() {
		v, err := strconv.ParseFloat(vs[0], 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: parameter %s: %v", chiptone.ErrInvalidParameter, k, err))
			return
		}
		params[k] = v
	}
	buf, err := render.Process(r.Context(), src, synth.Chain{synth.ParseEffect(name, params)})
	s.writeWav(w, r, buf, err)
}

func (s *Server) handleMIDISong(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	song, err := chiptone.UnmarshalSong(data)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", chiptone.ErrInvalidParameter, err))
		return
	}
	mid, err := smf.Song(&song)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Length", strconv.Itoa(len(mid)))
	w.Write(mid)
}

func (s *Server) writeWav(w http.ResponseWriter, r *http.Request, buf *chiptone.AudioBuffer, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wav, err := buf.Wav()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Write(wav)
}
