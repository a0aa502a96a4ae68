package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"explicit", NewTransientError(errors.New("slow"), 503), true},
		{"wrapped", eris.Wrap(NewTransientError(errors.New("slow"), 429), "nrk: get"), true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"io timeout text", errors.New("read tcp 10.0.0.1:443: i/o timeout"), true},
		{"not found", eris.Wrap(model.ErrNotFound, "wikidata: Q1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 501} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus("nrk", "FTEA00001099", http.StatusOK))

	err := CheckStatus("nrk", "FTEA00001099", http.StatusNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, IsTransient(err))

	err = CheckStatus("wikidata", "Q38757", http.StatusTooManyRequests)
	assert.True(t, IsTransient(err))
	var te *TransientError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 429, te.StatusCode)

	err = CheckStatus("sceneweb", "person 12", http.StatusForbidden)
	assert.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 502)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "inner", te.Error())
}
