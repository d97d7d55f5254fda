package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookchunk/internal/embed"
)

func TestInstrument_CountsBatchesAndGaps(t *testing.T) {
	m := New()
	e := m.Instrument(embed.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}, nil, {}}, nil
	}))

	_, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedBatches.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmbedGaps))
	assert.Equal(t, "func", e.Name())
}

func TestInstrument_CountsFailures(t *testing.T) {
	m := New()
	boom := errors.New("boom")
	e := m.Instrument(embed.EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	}))

	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedBatches.WithLabelValues("error")))
	assert.Zero(t, testutil.ToFloat64(m.EmbedGaps))
}

func TestHandler_ServesCollectors(t *testing.T) {
	m := New()
	m.Jobs.WithLabelValues("completed").Inc()
	m.Chunks.Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `bookchunk_jobs_total{status="completed"} 1`), text)
	assert.True(t, strings.Contains(text, "bookchunk_chunks_total 3"), text)
}
