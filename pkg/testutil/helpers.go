package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCase is one row of a table driven test around fn(Input).
type TestCase[I, O any] struct {
	Name     string
	Input    I
	Expected O
	WantErr  error
	AssertFn func(*testing.T, O)
}

// RunTestCases runs each case as a subtest. WantErr is matched with errors.Is;
// otherwise AssertFn runs, or the result must equal Expected.
func RunTestCases[I, O any](t *testing.T, cases []TestCase[I, O], fn func(I) (O, error)) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			result, err := fn(tc.Input)

			if tc.WantErr != nil {
				require.ErrorIs(t, err, tc.WantErr)
				return
			}
			require.NoError(t, err)

			if tc.AssertFn != nil {
				tc.AssertFn(t, result)
				return
			}
			assert.Equal(t, tc.Expected, result)
		})
	}
}

// JSONRequest builds a request whose body is body encoded as JSON. A nil body sends none.
func JSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// AsUser sets the identity headers the gateway forwards for an authenticated user.
func AsUser(req *http.Request, userID, email, role string) *http.Request {
	for header, value := range map[string]string{
		"X-User-ID":    userID,
		"X-User-Email": email,
		"X-User-Role":  role,
	} {
		if value != "" {
			req.Header.Set(header, value)
		}
	}
	return req
}

// Serve runs req through h and fails the test unless it answers wantStatus.
func Serve(t *testing.T, h http.Handler, req *http.Request, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, wantStatus, rr.Code, "%s %s answered %s", req.Method, req.URL.Path, rr.Body.String())
	return rr
}

// DecodeBody unmarshals the recorded response body into a T.
func DecodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "response body: %s", rr.Body.String())
	return v
}

// SkipIfShort skips integration tests under -short.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
