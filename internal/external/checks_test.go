// internal/external/checks_test.go
package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"licence-service/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestCheck_Passed(t *testing.T) {
	var gotPath, gotIin string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIin = r.URL.Query().Get("iin")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"passed": true}`))
	}))
	defer server.Close()

	c := NewCheckClient(server.URL, 5*time.Second, logger.NewTestLogger(t))

	assert.True(t, c.CheckAuthority(context.Background(), "900101312345"))
	assert.Equal(t, "/api/authority/check", gotPath)
	assert.Equal(t, "900101312345", gotIin)

	assert.True(t, c.CheckMedical(context.Background(), "900101312345"))
	assert.Equal(t, "/api/medical/check", gotPath)
}

func TestCheck_Refused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"passed": false, "message": "outstanding suspension"}`))
	}))
	defer server.Close()

	c := NewCheckClient(server.URL, 5*time.Second, logger.NewTestLogger(t))
	assert.False(t, c.CheckAuthority(context.Background(), "900101312345"))
}

func TestCheck_FailClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json at all`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewCheckClient(server.URL, 5*time.Second, logger.NewTestLogger(t))
			assert.False(t, c.CheckAuthority(context.Background(), "900101312345"))
			assert.False(t, c.CheckMedical(context.Background(), "900101312345"))
		})
	}
}

func TestCheck_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	c := NewCheckClient(server.URL, time.Second, logger.NewTestLogger(t))
	assert.False(t, c.CheckAuthority(context.Background(), "900101312345"))
}
