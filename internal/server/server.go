package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TobiSchelling/burstkit/internal/database"
	"github.com/TobiSchelling/burstkit/internal/metrics"
)

// Store is the read side of the annotations database.
type Store interface {
	ListSeries(ctx context.Context) ([]database.SeriesSummary, error)
	GetSeries(ctx context.Context, scope database.Scope, series string) ([]database.Annotation, error)
}

// Server serves the stored annotation series of one corpus as JSON.
type Server struct {
	db      Store
	scope   database.Scope
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// annotationJSON mirrors the timeline API: times are in milliseconds.
type annotationJSON struct {
	ID      int64   `json:"id"`
	Created int64   `json:"created"`
	User    string  `json:"user"`
	Label   string  `json:"label"`
	Time    int64   `json:"time"`
	Series  string  `json:"series"`
	Value   float64 `json:"value"`
}

// New creates a new Server. Annotations outside scope are never returned.
func New(db Store, scope database.Scope, m *metrics.Metrics) *Server {
	s := &Server{db: db, scope: scope, metrics: m, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.handle("GET", "/api/series", http.HandlerFunc(s.handleSeries))
	s.handle("GET", "/api/annotations", http.HandlerFunc(s.handleAnnotations))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// handle registers h and counts its responses by status code.
func (s *Server) handle(method, path string, h http.Handler) {
	if s.metrics != nil {
		h = promhttp.InstrumentHandlerCounter(
			s.metrics.Requests.MustCurryWith(prometheus.Labels{"route": path}), h)
	}
	s.mux.Handle(method+" "+path, h)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListSeries(r.Context())
	if err != nil {
		log.Printf("Error listing series: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []database.SeriesSummary{}
	}
	s.respond(w, list)
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	series := r.URL.Query().Get("series")
	if series == "" {
		http.Error(w, "series parameter is required", http.StatusBadRequest)
		return
	}

	rows, err := s.db.GetSeries(r.Context(), s.scope, series)
	if err != nil {
		log.Printf("Error getting series %s: %v", series, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]annotationJSON, 0, len(rows))
	for _, a := range rows {
		out = append(out, annotationJSON{
			ID:      a.ID,
			Created: a.Created.UnixMilli(),
			User:    a.User,
			Label:   a.Label,
			Time:    a.Time.UnixMilli(),
			Series:  a.Series,
			Value:   a.Value,
		})
	}
	s.respond(w, out)
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Serve starts the HTTP server on the given port.
func Serve(db Store, scope database.Scope, m *metrics.Metrics, port int) error {
	srv := New(db, scope, m)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
