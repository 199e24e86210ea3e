// Package apitest runs an in-memory circulation API for tests.
package apitest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wraps an httptest server backed by a Store
type Server struct {
	*Store
	URL string

	srv *httptest.Server

	mu    sync.Mutex
	calls map[string]int
	hold  map[string]chan struct{}
	fail  map[string]int
}

// New starts a fake API and closes it when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Store: newStore(),
		calls: make(map[string]int),
		hold:  make(map[string]chan struct{}),
		fail:  make(map[string]int),
	}

	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc("/books", s.handleListBooks).Methods(http.MethodGet)
	r.HandleFunc("/books", s.handleCreateBook).Methods(http.MethodPost)
	r.HandleFunc("/members", s.handleListMembers).Methods(http.MethodGet)
	r.HandleFunc("/members", s.handleCreateMember).Methods(http.MethodPost)
	r.HandleFunc("/checkout", s.handleCheckout).Methods(http.MethodPost)
	r.HandleFunc("/return", s.handleReturn).Methods(http.MethodPost)
	r.HandleFunc("/track", s.handleTrack).Methods(http.MethodPost)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close shuts the server down, releasing any held requests first
func (s *Server) Close() {
	s.mu.Lock()
	for path, ch := range s.hold {
		close(ch)
		delete(s.hold, path)
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Calls returns how many requests hit path
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests served so far
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Hold blocks requests to path until the returned release func is called
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold[path] = ch
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.hold[path] == ch {
			delete(s.hold, path)
			close(ch)
		}
	}
}

// FailNext makes the next request to path fail with a 500 and no detail
func (s *Server) FailNext(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[path]++
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		hold := s.hold[r.URL.Path]
		failing := s.fail[r.URL.Path] > 0
		if failing {
			s.fail[r.URL.Path]--
		}
		s.mu.Unlock()

		if hold != nil {
			<-hold
		}
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.allBooks())
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Author) == "" {
		writeError(w, "title and author are required", http.StatusUnprocessableEntity)
		return
	}
	book := s.createBook(req.Title, req.Author)
	writeJSON(w, http.StatusOK, map[string]any{
		"book":    book,
		"qrImage": "data:image/png;base64,iVBORw0KGgo=",
	})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.allMembers())
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, "name is required", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, s.createMember(req.Name))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData   string `json:"qrData"`
		MemberID int64  `json:"memberId"`
	}
	if !decode(w, r, &req) {
		return
	}
	loan, err := s.checkout(req.QRData, req.MemberID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Checkout successful", "loan": loan})
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.giveBack(req.QRData); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Return successful"})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.track(req.QRData)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	switch err {
	case errBookNotFound, errMemberNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, detail string, code int) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
