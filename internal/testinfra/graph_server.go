// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package testinfra

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// GraphCapture is one request received by a GraphServer.
type GraphCapture struct {
	Method string
	Path   string // without the version prefix
	Query  url.Values
	Header http.Header
}

// GraphResponse is a scripted reply.
type GraphResponse struct {
	Status int
	Header map[string]string
	Body   []byte
}

// JSON replies 200 with v encoded as JSON.
func JSON(v interface{}) GraphResponse {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return GraphResponse{Status: http.StatusOK, Body: data}
}

// GraphError replies with a Graph API error envelope.
func GraphError(status, code, subcode int, message string) GraphResponse {
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"message":       message,
			"type":          "OAuthException",
			"code":          code,
			"error_subcode": subcode,
			"fbtrace_id":    "AbCdEfGh",
		},
	}
	r := JSON(body)
	r.Status = status
	return r
}

// WithHeader returns a copy of r carrying an extra response header.
func (r GraphResponse) WithHeader(key, value string) GraphResponse {
	h := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		h[k] = v
	}
	h[key] = value
	r.Header = h
	return r
}

// GraphServer is a scripted stand-in for graph.facebook.com.
type GraphServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string][]GraphResponse
	funcs    map[string]http.HandlerFunc
	captures []GraphCapture
}

// NewGraphServer starts a server that is closed when the test ends.
// Unregistered paths reply 404 with a Graph API error body.
func NewGraphServer(t *testing.T) *GraphServer {
	t.Helper()

	g := &GraphServer{
		routes: make(map[string][]GraphResponse),
		funcs:  make(map[string]http.HandlerFunc),
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.Server.Close)
	return g
}

// URL returns the server base URL.
func (g *GraphServer) URL() string {
	return g.Server.URL
}

// Handle scripts the replies for path. Replies are served in order and the
// last one repeats.
func (g *GraphServer) Handle(path string, responses ...GraphResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[path] = append([]GraphResponse(nil), responses...)
}

// HandleFunc routes path to a custom handler.
func (g *GraphServer) HandleFunc(path string, fn http.HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.funcs[path] = fn
}

// Captures returns every request received so far.
func (g *GraphServer) Captures() []GraphCapture {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GraphCapture, len(g.captures))
	copy(out, g.captures)
	return out
}

// Calls returns how many requests hit path.
func (g *GraphServer) Calls(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.captures {
		if c.Path == path {
			n++
		}
	}
	return n
}

func (g *GraphServer) serve(w http.ResponseWriter, r *http.Request) {
	path := stripVersion(r.URL.Path)

	g.mu.Lock()
	g.captures = append(g.captures, GraphCapture{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	fn := g.funcs[path]
	var resp GraphResponse
	queued, ok := g.routes[path]
	if ok && len(queued) > 0 {
		resp = queued[0]
		if len(queued) > 1 {
			g.routes[path] = queued[1:]
		}
	}
	g.mu.Unlock()

	if fn != nil {
		fn(w, r)
		return
	}
	if !ok || len(queued) == 0 {
		resp = GraphError(http.StatusNotFound, 803, 0, "(#803) Some of the aliases you requested do not exist: "+path)
	}

	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(resp.Body) //nolint:errcheck
}

// stripVersion removes a leading /vNN.N segment.
func stripVersion(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	seg, rest, found := strings.Cut(trimmed, "/")
	if found && len(seg) > 1 && seg[0] == 'v' && seg[1] >= '0' && seg[1] <= '9' {
		return "/" + rest
	}
	return path
}
