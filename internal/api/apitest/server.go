// Package apitest provides an in-process fake of the translation service
// for tests.
package apitest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Route names accepted by Uploads and Hits.
const (
	RouteTranslate   = "translate"
	RouteSynthesize  = "synthesize"
	RouteSaveAccent  = "save_accent"
	RouteListAccents = "saved_accents"
	RouteDelete      = "delete_accent"
	RouteMe          = "me"
	RouteMedia       = "media"
)

// Token is the bearer token the server accepts unless changed.
const Token = "test-token"

// Email is the identity returned for Token.
const Email = "caller@example.com"

// Upload is a recorded request body.
type Upload struct {
	Fields      map[string]string
	FileName    string
	ContentType string
	Data        []byte
	Query       map[string]string
}

// Responder produces a status and body for an upload. A string body is
// written as-is, anything else is JSON encoded.
type Responder func(ctx context.Context, u Upload) (int, any)

// Accent is a saved accent in wire form.
type Accent struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	FilePath string `json:"file_path"`
}

// Server is a fake translation service.
type Server struct {
	URL string

	srv *httptest.Server

	mu         sync.Mutex
	token      string
	translate  Responder
	synthesize Responder
	accents    []Accent
	nextID     int
	artifacts  map[string][]byte
	uploads    map[string][]Upload
}

// New starts a fake server that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		token:     Token,
		nextID:    1,
		artifacts: make(map[string][]byte),
		uploads:   make(map[string][]Upload),
		translate: func(context.Context, Upload) (int, any) {
			return http.StatusOK, map[string]string{"transcription": "hello", "translation": "नमस्ते"}
		},
		synthesize: func(context.Context, Upload) (int, any) {
			return http.StatusOK, map[string]string{"translated_audio": "media/out.wav", "model_used": "default"}
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/media/*", s.handleMedia)
	r.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/api/translate/", s.handleUpload(RouteTranslate, func() Responder { return s.translate }))
		r.Post("/api/cloneaudio/", s.handleUpload(RouteSynthesize, func() Responder { return s.synthesize }))
		r.Post("/api/save_accent/", s.handleUpload(RouteSaveAccent, func() Responder { return s.saveAccent }))
		r.Get("/api/saved_accents/", s.handleListAccents)
		r.Delete("/api/saved_accent/{id}", s.handleDeleteAccent)
		r.Get("/api/users/me", s.handleMe)
	})

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Close shuts the server down early, e.g. to simulate a network failure.
func (s *Server) Close() {
	s.srv.Close()
}

// SetToken changes the accepted bearer token.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// OnTranslate replaces the translate responder.
func (s *Server) OnTranslate(fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translate = fn
}

// OnSynthesize replaces the synthesis responder.
func (s *Server) OnSynthesize(fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synthesize = fn
}

// AddAccent stores a saved accent and returns it.
func (s *Server) AddAccent(name, language string) Accent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccentLocked(name, language)
}

func (s *Server) addAccentLocked(name, language string) Accent {
	a := Accent{
		ID:       s.nextID,
		Name:     name,
		Language: language,
		FilePath: "accents/" + strconv.Itoa(s.nextID) + ".wav",
	}
	s.nextID++
	s.accents = append(s.accents, a)
	return a
}

// Accents returns the stored accents.
func (s *Server) Accents() []Accent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Accent, len(s.accents))
	copy(out, s.accents)
	return out
}

// PutArtifact serves data under /media/<name> and returns the relative
// reference a synthesis response would carry.
func (s *Server) PutArtifact(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = data
	return "media/" + name
}

// Uploads returns the requests recorded for route.
func (s *Server) Uploads(route string) []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, len(s.uploads[route]))
	copy(out, s.uploads[route])
	return out
}

// Hits returns the number of requests recorded for route.
func (s *Server) Hits(route string) int {
	return len(s.Uploads(route))
}

func (s *Server) record(route string, u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[route] = append(s.uploads[route], u)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Bearer " + s.token
		s.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeBody(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUpload(route string, responder func() Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		u := Upload{Fields: make(map[string]string), Query: queryMap(r)}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				u.Fields[k] = v[0]
			}
		}
		if f, hdr, err := r.FormFile("file"); err == nil {
			u.FileName = hdr.Filename
			u.ContentType = hdr.Header.Get("Content-Type")
			u.Data, _ = io.ReadAll(f)
			f.Close()
		}
		s.record(route, u)

		s.mu.Lock()
		fn := responder()
		s.mu.Unlock()
		status, body := fn(r.Context(), u)
		writeBody(w, status, body)
	}
}

func (s *Server) saveAccent(_ context.Context, u Upload) (int, any) {
	if u.Fields["accent_name"] == "" || len(u.Data) == 0 {
		return http.StatusBadRequest, map[string]string{"detail": "accent_name and file are required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return http.StatusOK, s.addAccentLocked(u.Fields["accent_name"], u.Fields["lang"])
}

func (s *Server) handleListAccents(w http.ResponseWriter, r *http.Request) {
	s.record(RouteListAccents, Upload{Query: queryMap(r)})
	writeBody(w, http.StatusOK, s.Accents())
}

func (s *Server) handleDeleteAccent(w http.ResponseWriter, r *http.Request) {
	s.record(RouteDelete, Upload{Query: queryMap(r)})

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accents {
		if a.ID == id {
			s.accents = append(s.accents[:i], s.accents[i+1:]...)
			writeBody(w, http.StatusOK, map[string]string{"status": "deleted"})
			return
		}
	}
	writeBody(w, http.StatusNotFound, map[string]string{"detail": "accent not found"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.record(RouteMe, Upload{})
	writeBody(w, http.StatusOK, map[string]string{"email": Email})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.record(RouteMedia, Upload{Query: queryMap(r)})

	name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	s.mu.Lock()
	data, ok := s.artifacts[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func queryMap(r *http.Request) map[string]string {
	out := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func writeBody(w http.ResponseWriter, status int, body any) {
	if s, ok := body.(string); ok {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		io.WriteString(w, s)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
