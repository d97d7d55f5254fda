package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookchunk/internal/config"
	"github.com/dgallion1/bookchunk/internal/embed"
	"github.com/dgallion1/bookchunk/internal/metrics"
	"github.com/dgallion1/bookchunk/internal/pipeline"
	"github.com/dgallion1/bookchunk/internal/store"
)

const apiKey = "secret"

type testEnv struct {
	srv   *httptest.Server
	store *store.Store
}

func newTestEnv(t *testing.T, embedder embed.Embedder) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.APIKey = apiKey
	cfg.EmbedProvider = embed.ProviderNoop

	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	stats := embed.NewLatencyStats(time.Hour)
	if embedder == nil {
		embedder = &embed.Noop{Dimension: 4}
	}
	embedder = embed.Timed(m.Instrument(embedder), stats)

	orch := pipeline.NewOrchestrator(
		pipeline.Options{Workers: 1, QueueSize: 8, JobTTL: time.Hour},
		pipeline.Deps{Embedder: embedder, Store: st, Metrics: m},
		pipeline.Settings{Chunker: cfg.ChunkerConfig()},
		log,
	)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := httptest.NewServer(NewServer(Deps{
		Orchestrator: orch,
		Store:        st,
		Embedder:     embedder,
		Stats:        stats,
		Metrics:      m,
	}, log, cfg))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (e *testEnv) postJSON(t *testing.T, path string, v any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, path, "application/json", bytes.NewReader(data))
}

func multipartBody(t *testing.T, files map[string][2]string, fields map[string]string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_Rejected(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.srv.URL + "/api/books")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/books", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestChunk_Synchronous(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.postJSON(t, "/api/chunk", map[string]any{
		"source": "geo",
		"pages": []map[string]any{
			{"page_content": "Maps show places on the earth", "page_label": 1},
			{"page_content": "Climate is the average weather", "page_label": 2},
		},
		"table_of_contents": map[string]any{"chapters": []map[string]any{
			{"name": "Climate", "number": 1, "start_page": 2},
		}},
	})
	require.Equal(t, http.StatusOK, code, body)

	chunks := body["chunks"].([]any)
	require.Len(t, chunks, 2)
	assert.EqualValues(t, 0, chunks[0].(map[string]any)["chapter_number"])
	assert.EqualValues(t, 1, chunks[1].(map[string]any)["chapter_number"])
	assert.Equal(t, "mathematical", body["chunker_config"].(map[string]any)["strategy"])
}

func TestChunk_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	pages := []map[string]any{{"page_content": "Maps show places on the earth", "page_label": 1}}

	code, _ := env.postJSON(t, "/api/chunk", map[string]any{"pages": pages, "strategy": "llm"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.postJSON(t, "/api/chunk", map[string]any{"pages": pages, "strategy": "semantic"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.postJSON(t, "/api/chunk", map[string]any{"pages": []any{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.postJSON(t, "/api/chunk", map[string]any{
		"pages": pages,
		"table_of_contents": map[string]any{"chapters": []map[string]any{
			{"name": "B", "number": 2, "start_page": 9},
			{"name": "A", "number": 1, "start_page": 3},
		}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChunk_SizeOnlyOverride(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.postJSON(t, "/api/chunk", map[string]any{
		"source": "scenario",
		"pages": []map[string]any{
			{"page_content": "Intro text", "page_label": 1},
			{"page_content": "$x^2+y^2=1$ more text and a trailing fragmen", "page_label": 2},
		},
		"chunk_size": 20,
	})
	require.Equal(t, http.StatusOK, code, body)

	cfg := body["chunker_config"].(map[string]any)
	assert.EqualValues(t, 20, cfg["chunk_size"])
	assert.EqualValues(t, 3, cfg["chunk_overlap"])

	chunks := body["chunks"].([]any)
	require.NotEmpty(t, chunks)
	sawMath := false
	for _, c := range chunks {
		content := c.(map[string]any)["content"].(string)
		assert.Equal(t, strings.Count(content, "<math>"), strings.Count(content, "</math>"), content)
		if strings.Contains(content, "<math>") {
			sawMath = true
		}
	}
	assert.True(t, sawMath)
}

func TestChunk_NoVectorsIsUnprocessable(t *testing.T) {
	env := newTestEnv(t, embed.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)), nil
	}))

	code, body := env.postJSON(t, "/api/chunk", map[string]any{
		"pages": []map[string]any{{"page_content": "Maps show places on the earth", "page_label": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "empty chunk list")
}

func waitForJob(t *testing.T, env *testEnv, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, body := env.do(t, http.MethodGet, "/api/ingest/"+jobID+"/status", "", nil)
		require.Equal(t, http.StatusOK, code)
		switch body["status"] {
		case "completed", "failed", "partial", "duplicate_skipped":
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func TestIngest_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	ct, body := multipartBody(t, map[string][2]string{
		"file": {"geo.txt", "Contents page\fMaps show places on the earth\fClimate is the average weather"},
		"toc":  {"toc.yaml", "chapters:\n  - {name: Map work, number: 1, start_page: 1}\n  - {name: Climate, number: 2, start_page: 2}\n"},
	}, map[string]string{"first_page": "2"})
	code, resp := env.do(t, http.MethodPost, "/api/ingest", ct, body)
	require.Equal(t, http.StatusAccepted, code, resp)

	status := waitForJob(t, env, resp["job_id"].(string))
	require.Equal(t, "completed", status["status"], status)
	bookID := status["book_id"].(string)

	code, list := env.do(t, http.MethodGet, "/api/books", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list["books"], 1)

	code, chunks := env.do(t, http.MethodGet, "/api/books/"+bookID+"/chunks?embeddings=false", "", nil)
	require.Equal(t, http.StatusOK, code)
	items := chunks["chunks"].([]any)
	require.Len(t, items, 3)
	var chapters, pages []float64
	for _, it := range items {
		c := it.(map[string]any)
		chapters = append(chapters, c["chapter_number"].(float64))
		pages = append(pages, c["page_number"].(float64))
		assert.Nil(t, c["embedding"])
	}
	assert.Equal(t, []float64{0, 1, 2}, chapters)
	assert.Equal(t, []float64{0, 1, 2}, pages)

	code, _ = env.do(t, http.MethodDelete, "/api/books/"+bookID, "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/api/books/"+bookID, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, "/api/books/"+bookID+"/chunks", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIngest_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	ct, body := multipartBody(t, map[string][2]string{"file": {"geo.csv", "a,b"}}, nil)
	code, _ := env.do(t, http.MethodPost, "/api/ingest", ct, body)
	assert.Equal(t, http.StatusBadRequest, code)

	ct, body = multipartBody(t, map[string][2]string{"file": {"geo.txt", "text"}}, map[string]string{"toc_pages": "three"})
	code, _ = env.do(t, http.MethodPost, "/api/ingest", ct, body)
	assert.Equal(t, http.StatusBadRequest, code)

	ct, body = multipartBody(t, nil, map[string]string{"title": "no file"})
	code, _ = env.do(t, http.MethodPost, "/api/ingest", ct, body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBatchIngest(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{
		"a.txt": "Maps show places on the earth",
		"b.md":  "# Climate\n\nClimate is the average weather",
		"c.csv": "x,y",
	} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(t, mw.Close())

	code, resp := env.do(t, http.MethodPost, "/api/ingest/batch", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusAccepted, code)

	jobs := resp["jobs"].([]any)
	require.Len(t, jobs, 3)
	accepted := 0
	for _, j := range jobs {
		m := j.(map[string]any)
		if id, ok := m["job_id"].(string); ok {
			accepted++
			assert.Equal(t, "completed", waitForJob(t, env, id)["status"])
		} else {
			assert.Equal(t, "c.csv", m["filename"])
		}
	}
	assert.Equal(t, 2, accepted)
}

func TestMetricsAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	code, _ := env.postJSON(t, "/api/chunk", map[string]any{
		"pages": []map[string]any{{"page_content": "Maps show places on the earth", "page_label": 1}},
	})
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodGet, "/api/stats/embed", "", nil)
	require.Equal(t, http.StatusOK, code)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["count"])
	assert.EqualValues(t, 1, stats["texts"])
	assert.Equal(t, "noop", stats["provider"])

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), `bookchunk_embed_batches_total{result="ok"} 1`)
	assert.Contains(t, string(data), "bookchunk_chunks_total 1")
}
