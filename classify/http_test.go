package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "paciente con antecedentes", req.Text)

		json.NewEncoder(w).Encode(classifyResponse{Label: LabelColorectal})
	}))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{URL: srv.URL})
	require.NoError(t, err)

	label, err := c.Classify(context.Background(), "paciente con antecedentes")
	require.NoError(t, err)
	require.Equal(t, LabelColorectal, label)
}

func TestClassifyHTTPServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{URL: srv.URL})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "texto")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyHTTPConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c, err := NewHTTP(HTTPConfig{URL: srv.URL})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "texto")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyHTTPMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{URL: srv.URL})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "texto")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewHTTPValidation(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{})
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	label, err := Static{}.Classify(context.Background(), "texto")
	require.NoError(t, err)
	require.Equal(t, LabelHealthy, label)

	label, err = Static{Label: LabelColorectal}.Classify(context.Background(), "texto")
	require.NoError(t, err)
	require.Equal(t, LabelColorectal, label)

	boom := errors.New("boom")
	_, err = Static{Err: boom}.Classify(context.Background(), "texto")
	require.ErrorIs(t, err, boom)
}
