package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mgomes/resumefind/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBackend struct {
	source       string
	uploaded     []string
	uploadedFail bool
	calls    map[string]int
	lastBody map[string]string
	session  string
}

func newFakeBackend(t *testing.T, opts ...Option) (*fakeBackend, *Client) {
	t.Helper()

	fb := &fakeBackend{
		source:   "local",
		calls:    make(map[string]int),
		lastBody: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fb.calls["status"]++
		fb.session = r.Header.Get(sessionIDHeader)
		writeJSON(w, http.StatusOK, map[string]any{
			"message":         "Resume Search API",
			"indexed_resumes": 12,
			"current_source":  fb.source,
		})
	})
	r.Get("/uploaded-resumes", func(w http.ResponseWriter, r *http.Request) {
		fb.calls["uploaded"]++
		if fb.uploadedFail {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "upload store offline"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": fb.uploaded})
	})
	r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
		fb.calls["search"]++
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "bad body"})
			return
		}
		fb.lastBody["search"] = req.Query
		switch req.Query {
		case "fail":
			writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "index unavailable"})
		case "garbage":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>"))
		case "nobody":
			writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{}, "message": "I'm not sure"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"candidates": []map[string]any{{
					"candidate_id":       "c1",
					"candidate_name":     "Ana Silva",
					"resume_path":        `C:\resumes\ana.pdf`,
					"score":              0.92,
					"explanation":        "5 yrs React/Node",
					"skills":             []string{"React", "Node.js", "TypeScript"},
					"experience_summary": "5 years of experience",
				}},
			})
		}
	})
	r.Post("/upload-resumes", func(w http.ResponseWriter, r *http.Request) {
		fb.calls["upload"]++
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		var names []string
		for _, fh := range r.MultipartForm.File[uploadField] {
			f, err := fh.Open()
			if !assert.NoError(t, err) {
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			fb.lastBody["upload:"+fh.Filename] = string(data)
			names = append(names, fh.Filename)
		}
		fb.uploaded = names
		fb.source = "uploaded"
		writeJSON(w, http.StatusOK, map[string]any{"files": names, "indexed_count": len(names)})
	})
	r.Post("/set-resume-source", func(w http.ResponseWriter, r *http.Request) {
		fb.calls["source"]++
		var req sourceRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		fb.lastBody["source"] = string(req.Source)
		fb.source = string(req.Source)
		writeJSON(w, http.StatusOK, map[string]any{"indexed_count": 7})
	})
	r.Delete("/clear-uploads", func(w http.ResponseWriter, r *http.Request) {
		fb.calls["clear"]++
		fb.uploaded = nil
		fb.source = "local"
		writeJSON(w, http.StatusOK, map[string]any{"indexed_count": 12})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/", append([]Option{WithSessionID("session-1")}, opts...)...)
	require.NoError(t, err)

	return fb, client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("localhost:8000")
	assert.Error(t, err)

	_, err = New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("http://")
	assert.Error(t, err)
}

func TestFetchStatus_Local(t *testing.T) {
	fb, client := newFakeBackend(t)

	status, err := client.FetchStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, status.IndexedCount)
	assert.Equal(t, models.SourceLocal, status.Active)
	assert.Empty(t, status.UploadedFiles)
	assert.Equal(t, 0, fb.calls["uploaded"], "uploaded list is only requested for the uploaded source")
	assert.Equal(t, "session-1", fb.session)
}

func TestFetchStatus_Uploaded(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.source = "uploaded"
	fb.uploaded = []string{"x.pdf", "y.pdf"}

	status, err := client.FetchStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SourceUploaded, status.Active)
	assert.Equal(t, []string{"x.pdf", "y.pdf"}, status.UploadedFiles)
	assert.Equal(t, 1, fb.calls["uploaded"])
}

func TestSearch(t *testing.T) {
	fb, client := newFakeBackend(t)

	query := "Find me candidates with React and Node.js experience"
	result, err := client.Search(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, query, fb.lastBody["search"])
	require.Len(t, result.Candidates, 1)
	c := result.Candidates[0]
	assert.Equal(t, "Ana Silva", c.Name)
	assert.InDelta(t, 0.92, c.Score, 1e-9)
	assert.Equal(t, []string{"React", "Node.js", "TypeScript"}, c.Skills)
	assert.Equal(t, `C:\resumes\ana.pdf`, c.ResumeLocator)
	assert.Empty(t, result.Notice)
}

func TestSearch_NoMatchesNotice(t *testing.T) {
	_, client := newFakeBackend(t)

	result, err := client.Search(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, "I'm not sure", result.Notice)
}

func TestSearch_HTTPError(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.Search(context.Background(), "fail")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, "index unavailable", httpErr.Detail)
	assert.False(t, IsNetwork(err))
}

func TestSearch_UnparsableBodyIsNetworkError(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.Search(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestSearch_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(url)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "react")
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestUploadResumes(t *testing.T) {
	fb, client := newFakeBackend(t)

	result, err := client.UploadResumes(context.Background(), []models.Document{
		{Name: "x.pdf", Data: []byte("one")},
		{Name: "y.pdf", Data: []byte("two")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"x.pdf", "y.pdf"}, result.UploadedFiles)
	assert.Equal(t, 2, result.IndexedCount)
	assert.Equal(t, "one", fb.lastBody["upload:x.pdf"])
	assert.Equal(t, "two", fb.lastBody["upload:y.pdf"])
}

func TestSetActiveSource(t *testing.T) {
	fb, client := newFakeBackend(t)

	count, err := client.SetActiveSource(context.Background(), models.SourceUploaded)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, "uploaded", fb.lastBody["source"])
}

func TestClearUploads(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.uploaded = []string{"x.pdf"}

	count, err := client.ClearUploads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.Equal(t, 1, fb.calls["clear"])
}

func TestFetchStatus_UploadedListFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fb, client := newFakeBackend(t, WithLogger(zap.New(core)))
	fb.source = "uploaded"
	fb.uploadedFail = true

	_, err := client.FetchStatus(context.Background())

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)

	entries := logs.FilterMessage("dropping status snapshot without uploaded file list").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(12), entries[0].ContextMap()["indexed"])
}

func TestResolveResumeURL(t *testing.T) {
	client, err := New("http://localhost:8000")
	require.NoError(t, err)

	u, err := client.ResolveResumeURL(`C:\resumes\ana.pdf`)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/resume/ana.pdf", u.String())

	u, err = client.ResolveResumeURL("/data/uploads/y.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/resume/y.pdf", u.String())

	_, err = client.ResolveResumeURL("/data/uploads/")
	assert.Error(t, err)
}

func TestResolveResumeURL_EscapesFilename(t *testing.T) {
	client, err := New("http://localhost:8000")
	require.NoError(t, err)

	tests := []struct {
		locator string
		want    string
	}{
		{locator: "/data/100%.pdf", want: "http://localhost:8000/resume/100%25.pdf"},
		{locator: `C:
esumesna silva.pdf`, want: "http://localhost:8000/resume/ana%20silva.pdf"},
		{locator: "/data/cv#2?.pdf", want: "http://localhost:8000/resume/cv%232%3F.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			u, err := client.ResolveResumeURL(tt.locator)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestResolveResumeURL_RejectsDotSegments(t *testing.T) {
	client, err := New("http://localhost:8000")
	require.NoError(t, err)

	for _, locator := range []string{"/data/..", `C:
esumes\.`, ".."} {
		_, err := client.ResolveResumeURL(locator)
		assert.Error(t, err, locator)
	}
}

func TestResumeFilename(t *testing.T) {
	assert.Equal(t, "ana.pdf", ResumeFilename(`C:\resumes\ana.pdf`))
	assert.Equal(t, "ana.pdf", ResumeFilename("resumes/ana.pdf"))
	assert.Equal(t, "ana.pdf", ResumeFilename(`..\mixed/dir\ana.pdf`))
	assert.Equal(t, "ana.pdf", ResumeFilename("ana.pdf"))
	assert.Equal(t, "", ResumeFilename(""))
}
