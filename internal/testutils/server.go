// Package testutils provides shared test infrastructure.
package testutils

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// presignQuery mimics the credentials a presigned URL carries.
const presignQuery = "X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Expires=3600&X-Amz-Signature=deadbeef"

// Request is a request recorded by an AssetServer.
type Request struct {
	Method string
	Path   string
	Range  string
}

// AssetServer serves in-memory assets with byte range support and
// scriptable failures.
type AssetServer struct {
	*httptest.Server

	mu          sync.Mutex
	files       map[string][]byte
	failures    map[string][]int
	headStatus  int
	ignoreRange bool
	requests    []Request
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 251)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// StartAssetServer starts an AssetServer that is closed with the test.
func StartAssetServer(t *testing.T) *AssetServer {
	t.Helper()
	s := &AssetServer{
		files:    make(map[string][]byte),
		failures: make(map[string][]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddFile registers data under path (e.g. "/a/b.tif") and returns its
// presigned-looking URL.
func (s *AssetServer) AddFile(path string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return s.URL + path + "?" + presignQuery
}

// FailNext makes the next GET requests for path answer with the given
// statuses, in order.
func (s *AssetServer) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// SetHeadStatus makes HEAD requests answer with status and no headers.
// Zero restores normal behaviour.
func (s *AssetServer) SetHeadStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headStatus = status
}

// SetIgnoreRange makes the server answer ranged GETs with the full body.
func (s *AssetServer) SetIgnoreRange(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreRange = ignore
}

// Requests returns the recorded requests.
func (s *AssetServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns the number of recorded requests with the given method.
func (s *AssetServer) Count(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// Reset clears the recorded requests.
func (s *AssetServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *AssetServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Range: r.Header.Get("Range")})
	data, ok := s.files[r.URL.Path]
	headStatus := s.headStatus
	ignoreRange := s.ignoreRange
	failStatus := 0
	if r.Method == http.MethodGet && len(s.failures[r.URL.Path]) > 0 {
		failStatus = s.failures[r.URL.Path][0]
		s.failures[r.URL.Path] = s.failures[r.URL.Path][1:]
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if failStatus != 0 {
		w.WriteHeader(failStatus)
		return
	}

	size := int64(len(data))

	if r.Method == http.MethodHead {
		if headStatus != 0 {
			w.WriteHeader(headStatus)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || ignoreRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Write(data)
		return
	}

	// Parse range header: bytes=start-[end]
	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeHeader, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end := size - 1
	if len(parts) > 1 && parts[1] != "" {
		end, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	if start >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end >= size {
		end = size - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}
