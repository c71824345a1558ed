package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/similarity"
	"github.com/hyperjump/ruiji/internal/storage"
)

// homePage is the data rendered by templates/home.html.
type homePage struct {
	Query           string
	Heading         string
	Columns         []string
	Recommendations []*models.Recommendation
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderHome(w, http.StatusOK, &homePage{Columns: models.Columns})
}

func (s *Server) handleRecommendForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("Restaurant"))
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "Restaurant is required")
		return
	}
	resp, ok := s.recommend(w, r, name)
	if !ok {
		return
	}
	s.renderHome(w, http.StatusOK, &homePage{
		Query:           name,
		Heading:         resp.Heading,
		Columns:         models.Columns,
		Recommendations: resp.Recommendations,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	start := time.Now()
	resp, ok := s.recommend(w, r, name)
	if !ok {
		return
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

// recommend runs the lookup and writes the error response itself when it fails.
func (s *Server) recommend(w http.ResponseWriter, r *http.Request, name string) (*models.RecommendResponse, bool) {
	s.logger.Debug("recommend request", zap.String("name", name))
	resp, err := s.service.Recommend(r.Context(), name)
	if err == nil {
		return resp, true
	}
	var nf *recommend.NotFoundError
	switch {
	case errors.As(err, &nf):
		s.respondJSON(w, http.StatusGone, &models.ErrorResponse{
			Error:       nf.Error(),
			Status:      http.StatusGone,
			Suggestions: nf.Suggestions,
		})
	case errors.Is(err, recommend.ErrNoCatalog):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("recommend failed", zap.String("name", name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
	return nil, false
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req models.SimilarityRequest
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.Similarity.BatchSize, s.config.Server.MaxSimilarityCells); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	m1, err := buildMatrix(req.M1, req.Sparse)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "m1: "+err.Error())
		return
	}
	m2, err := buildMatrix(req.M2, req.Sparse)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "m2: "+err.Error())
		return
	}
	result, err := s.computer.ComputeContext(r.Context(), m1, m2, req.BatchSize)
	if err != nil {
		if errors.Is(err, similarity.ErrDimensionMismatch) || errors.Is(err, similarity.ErrInvalidArgument) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("similarity failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rows, cols := result.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, result)
	}
	s.respondJSON(w, http.StatusOK, &models.SimilarityResponse{
		Rows:       rows,
		Cols:       cols,
		BatchSize:  req.BatchSize,
		Similarity: out,
		QueryTime:  time.Since(start).Milliseconds(),
	})
}

func buildMatrix(rows [][]float64, sparse bool) (similarity.Matrix, error) {
	if sparse {
		return similarity.CSRFromRows(rows)
	}
	return similarity.DenseFromRows(rows)
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Source         string              `json:"source"`
	Restaurants    int                 `json:"restaurants"`
	LoadedAt       string              `json:"loaded_at,omitempty"`
	Files          []storage.FileUsage `json:"files,omitempty"`
	DiskUsageBytes int64               `json:"disk_usage_bytes"`
	Config         StatusConfig        `json:"config"`
}

// StatusConfig echoes the settings that shape results.
type StatusConfig struct {
	BatchSize int  `json:"batch_size"`
	Workers   int  `json:"workers"`
	TopK      int  `json:"top_k"`
	Suggest   bool `json:"suggest"`
}

// BuildStatus reports catalog size and dataset files for cfg.
func BuildStatus(cfg *config.Config, catalog *recommend.Catalog, loadedAt time.Time) (*StatusResponse, error) {
	resp := &StatusResponse{
		Source: cfg.Data.Source,
		Config: StatusConfig{
			BatchSize: cfg.Similarity.BatchSize,
			Workers:   cfg.Similarity.Workers,
			TopK:      cfg.Similarity.TopK,
			Suggest:   cfg.Suggest.EnabledOrDefault(),
		},
	}
	if catalog != nil {
		resp.Restaurants = catalog.Len()
	}
	if !loadedAt.IsZero() {
		resp.LoadedAt = loadedAt.UTC().Format(time.RFC3339)
	}
	paths := []string{cfg.Data.FeaturesPath, cfg.Data.NeighborsPath}
	paths = append(paths, storage.SQLitePaths(cfg.Data.SQLitePath)...)
	usage, total, err := storage.DatasetUsage(paths...)
	if err != nil {
		return resp, err
	}
	resp.Files = usage
	resp.DiskUsageBytes = total
	return resp, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var loadedAt time.Time
	if s.reloader != nil {
		loadedAt = s.reloader.LastLoad()
	}
	resp, err := BuildStatus(s.config, s.service.Catalog(), loadedAt)
	if err != nil {
		s.logger.Warn("status: dataset usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		s.respondError(w, http.StatusNotImplemented, "reload not enabled")
		return
	}
	if err := s.reloader.Reload(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{"status": "reloaded"}
	if c := s.service.Catalog(); c != nil {
		resp["restaurants"] = c.Len()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.service.Catalog() == nil {
		s.respondError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) renderHome(w http.ResponseWriter, status int, page *homePage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.home.Execute(w, page); err != nil {
		s.logger.Error("render home", zap.Error(err))
	}
}

// respondJSON encodes before writing the header so an unencodable value becomes a 500.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		body, _ = json.Marshal(&models.ErrorResponse{Error: "failed to encode response", Status: http.StatusInternalServerError})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, &models.ErrorResponse{Error: message, Status: status})
}
