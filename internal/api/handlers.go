package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/store"
)

const maxBodyBytes = 4 << 20

func decode(dim model.Dimension, body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return model.Invalid(dim, "body", "%v", err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, model.Invalid("", "body", "%v", err)
	}
	return data, nil
}

func (s *Server) dimension(r *http.Request) (model.Dimension, error) {
	raw := chi.URLParam(r, "dimension")
	d, ok := model.ParseDimension(raw)
	if !ok {
		return "", &model.NotFoundError{Dimension: "dimension", ID: raw}
	}
	return d, nil
}

// recordID returns the {id} path parameter after checking its prefix
// belongs to the dimension in the path.
func recordID(r *http.Request, d model.Dimension) (string, error) {
	id := chi.URLParam(r, "id")
	if got, ok := model.DimensionOf(id); !ok || got != d {
		return "", &model.NotFoundError{Dimension: d, ID: id}
	}
	return id, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	d, err := s.dimension(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var out any
	switch name := r.URL.Query().Get("procedure"); {
	case d == model.DimensionProcedural && name != "":
		out, err = s.engine.Procedural().Steps(r.Context(), user, name)
	case d == model.DimensionRelationship:
		out, err = s.engine.Semantic().Relationships(r.Context(), user, r.URL.Query().Get("node"))
	default:
		out, err = s.engine.List(r.Context(), user, d)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, map[string]any{"dimension": d, "records": out})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	d, err := s.dimension(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.engine.Create(r.Context(), user, d, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleRecordEpisode(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	var ep model.EpisodicMemory
	if err := decode(model.DimensionEpisodic, http.MaxBytesReader(w, r.Body, maxBodyBytes), &ep); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.engine.RecordEpisode(r.Context(), user, ep)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	d, err := s.dimension(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := recordID(r, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.engine.Get(r.Context(), user, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rec == nil {
		s.fail(w, r, &model.NotFoundError{Dimension: d, ID: id})
		return
	}
	successResponse(w, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	d, err := s.dimension(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := recordID(r, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.engine.Update(r.Context(), user, id, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	d, err := s.dimension(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := recordID(r, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted, err := s.engine.Delete(r.Context(), user, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, map[string]any{"id": id, "deleted": deleted})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	d, err := s.dimension(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query().Get("q")
	hits, err := s.engine.Search(r.Context(), user, d, query, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, map[string]any{"dimension": d, "query": query, "results": hits})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, model.Invalid("", "limit", "%q is not a non-negative integer", raw)
	}
	return n, nil
}

type contextRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBuildContext(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	var req contextRequest
	if err := decode("", http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, s.engine.BuildContext(r.Context(), user, req.Message))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Export(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	successResponse(w, snap)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	var snap store.Snapshot
	if err := decode("", http.MaxBytesReader(w, r.Body, maxBodyBytes), &snap); err != nil {
		s.fail(w, r, err)
		return
	}
	switch snap.UserID {
	case "":
		snap.UserID = user
	case user:
	default:
		s.fail(w, r, model.Invalid("", "user_id", "snapshot belongs to %s, not %s", snap.UserID, user))
		return
	}
	n, err := s.engine.Import(r.Context(), &snap)
	if err != nil {
		s.fail(w, r, fmt.Errorf("import after %d records: %w", n, err))
		return
	}
	successResponse(w, map[string]any{"user_id": user, "imported": n})
}
