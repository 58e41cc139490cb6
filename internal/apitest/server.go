// Package apitest is an in-memory implementation of the task tracker REST
// backend. Tests run it behind httptest; `tasktrack dev-server` serves it.
package apitest

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tgienger/tasktrack/internal/logger"
	"github.com/tgienger/tasktrack/internal/models"
)

// Request is one recorded call
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Body        []byte
}

type failure struct {
	status      int
	contentType string
	body        string
}

type attachment struct {
	models.Attachment
	commentID   int64
	contentType string
	data        []byte
}

// Server is the fake backend. Its zero value is not usable; call New.
type Server struct {
	mu          sync.Mutex
	users       []models.User
	projects    []models.Project
	tasks       []*models.Task
	comments    map[int64][]*models.Comment
	attachments map[int64]*attachment
	nextTask    int64
	nextComment int64
	nextAttach  int64
	// currentUser authors every new comment
	currentUser int64
	requests    []Request
	failures    map[string]failure
	hold        map[string]chan struct{}
	now         func() time.Time

	engine *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithClock replaces time.Now for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithoutSeed starts the server empty
func WithoutSeed() Option {
	return func(s *Server) {
		s.users, s.projects, s.tasks = nil, nil, nil
		s.comments = map[int64][]*models.Comment{}
		s.attachments = map[int64]*attachment{}
		s.nextTask, s.nextComment, s.nextAttach = 0, 0, 0
	}
}

// New creates a server populated with Seed data
func New(opts ...Option) *Server {
	s := &Server{
		comments:    map[int64][]*models.Comment{},
		attachments: map[int64]*attachment{},
		failures:    map[string]failure{},
		hold:        map[string]chan struct{}{},
		now:         time.Now,
		currentUser: 2,
	}
	s.seed()
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.inject)

	api := r.Group("/api")
	{
		api.GET("/users", s.listUsers)
		api.GET("/projects", s.listProjects)
		api.GET("/tasks", s.listTasks)
		api.POST("/tasks", s.createTask)
		api.GET("/tasks/:id", s.getTask)
		api.PUT("/tasks/:id", s.updateTask)
		api.DELETE("/tasks/:id", s.deleteTask)
		api.GET("/tasks/:id/comments", s.listComments)
		api.POST("/tasks/:id/comments", s.addComment)
		api.DELETE("/comments/:id", s.deleteComment)
		api.GET("/attachments/:id", s.downloadAttachment)
	}
	return r
}

func routeKey(method, path string) string { return method + " " + path }

// record keeps a copy of every request and logs it
func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	reqID := c.GetHeader("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	ctx := logger.ContextWithRequestID(c.Request.Context(), reqID)
	c.Request = c.Request.WithContext(ctx)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		RawQuery:    c.Request.URL.RawQuery,
		ContentType: c.ContentType(),
		Body:        body,
	})
	s.mu.Unlock()

	start := time.Now()
	c.Next()
	logger.WithContext(ctx).Debug("fake backend",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"took", time.Since(start),
	)
}

// inject applies failures and holds registered for the route
func (s *Server) inject(c *gin.Context) {
	key := routeKey(c.Request.Method, c.Request.URL.Path)
	s.mu.Lock()
	f, failing := s.failures[key]
	gate := s.hold[key]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.Data(f.status, f.contentType, []byte(f.body))
		c.Abort()
	}
}

// Fail makes every request to method+path answer status with a JSON error body
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, _ := jsonString(gin.H{"error": message})
	s.failures[routeKey(method, path)] = failure{status: status, contentType: "application/json", body: body}
}

// FailRaw makes method+path answer status with the given content type and body
func (s *Server) FailRaw(method, path string, status int, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[routeKey(method, path)] = failure{status: status, contentType: contentType, body: body}
}

// Recover removes an injected failure
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, routeKey(method, path))
}

// Hold blocks requests to method+path until the returned release func is called
func (s *Server) Hold(method, path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.hold[routeKey(method, path)] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hold, routeKey(method, path))
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Requests returns the recorded requests, oldest first
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for method and path
func (s *Server) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests forgets recorded requests
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) stamp() models.Timestamp {
	return models.At(s.now().UTC().Truncate(time.Second))
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// TaskCount returns the number of stored tasks
func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
