package nrk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/resilience"
)

func TestProgram_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/programs/FTEA00001099", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":             "FTEA00001099",
			"title":          "Peer Gynt 1:2",
			"description":    "Henrik Ibsens dramatiske dikt.",
			"productionYear": 1999,
			"duration":       "PT1H2M10S",
			"mediaType":      "Video",
			"contributors": []map[string]string{
				{"role": "Regi", "name": "Bentein Baardson"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithDelay(-1))
	p, err := c.Program(context.Background(), "FTEA00001099")
	require.NoError(t, err)
	assert.Equal(t, "Peer Gynt 1:2", p.Title)
	assert.Equal(t, 1999, p.ProductionYear)
	assert.Equal(t, 3730, p.DurationSeconds())
	assert.Equal(t, "", p.SeriesID())
	require.Len(t, p.Contributors, 1)
	assert.Equal(t, "Regi", p.Contributors[0].Role)
}

func TestProgram_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL), WithDelay(-1)).Program(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestProgram_Transient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL), WithDelay(-1)).Program(context.Background(), "FTEA00001099")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestProgram_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>")) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL), WithDelay(-1)).Program(context.Background(), "FTEA00001099")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nrk: decode")
}

func TestProgram_EmptyID(t *testing.T) {
	_, err := NewClient(WithDelay(-1)).Program(context.Background(), "  ")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := map[string]int{
		"PT1H2M3S": 3723,
		"PT45M":    2700,
		"PT30.6S":  30,
		"P1DT1S":   86401,
		"pt2h":     7200,
		"":         0,
		"01:02:03": 0,
		"PT":       0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseDuration(in), in)
	}
}
