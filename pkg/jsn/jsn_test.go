package jsn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func read(body string) (payload, error) {
	var p payload
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := ReadJSON(httptest.NewRecorder(), r, &p)
	return p, err
}

func TestReadJSON(t *testing.T) {
	p, err := read(`{"name":"aws","count":2}`)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "aws", Count: 2}, p)

	cases := map[string]string{
		"":                         "body must not be empty",
		`{"name":`:                 "badly-formed JSON",
		`{"count":"two"}`:          `incorrect JSON type for field "count"`,
		`{"nick":"x"}`:             `unknown key "nick"`,
		`{"name":"a"}{"name":"b"}`: "single JSON value",
	}
	for body, want := range cases {
		_, err := read(body)
		require.Error(t, err, body)
		assert.Contains(t, err.Error(), want, body)
	}
}

func TestReadJSONTooLarge(t *testing.T) {
	_, err := read(`{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be larger than")
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	headers := http.Header{"Location": []string{"/v1/keys/1"}}
	require.NoError(t, WriteJSON(w, http.StatusCreated, payload{Name: "x"}, headers))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "/v1/keys/1", w.Header().Get("Location"))
	assert.JSONEq(t, `{"name":"x","count":0}`, w.Body.String())
}
