package snowpilot

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snowpit-etl-service/internal/observability"
	"github.com/couchcryptid/snowpit-etl-service/internal/query"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession(t *testing.T, baseURL string) *Session {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	s := &Session{
		cfg:        Config{BaseURL: baseURL, User: "frosty", Password: "cornice", MaxRetries: 3},
		httpClient: &http.Client{Jar: jar, Timeout: 5 * time.Second},
		clock:      clockwork.NewRealClock(),
		logger:     discardLogger(),
		metrics:    testMetrics(),
	}
	s.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(s.cfg.MaxRetries))
	}
	return s
}

func archiveBytes(t *testing.T, names ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		body := "<SnowProfile/>"
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestSession_Authenticate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, LoginPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "frosty", r.PostFormValue("name"))
		assert.Equal(t, "cornice", r.PostFormValue("pass"))
		assert.Equal(t, "user_login", r.PostFormValue("form_id"))
		assert.Equal(t, "Log in", r.PostFormValue("op"))

		http.SetCookie(w, &http.Cookie{Name: "SESS", Value: "granted"})
		_, _ = w.Write([]byte("<html>welcome back</html>"))
	}))
	defer srv.Close()

	s := testSession(t, srv.URL)
	require.NoError(t, s.Authenticate(context.Background()))
	assert.True(t, s.authenticated)
}

func TestSession_Authenticate_InvalidLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>Invalid login or password</html>"))
	}))
	defer srv.Close()

	s := testSession(t, srv.URL)
	err := s.Authenticate(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "invalid username or password")
	assert.False(t, s.authenticated)
}

func TestSession_Authenticate_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := testSession(t, srv.URL)
	err := s.Authenticate(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "502")
}

func TestSession_Authenticate_MissingCredentials(t *testing.T) {
	s := testSession(t, "http://127.0.0.1:0")
	s.cfg.User = ""

	err := s.Authenticate(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "credentials not configured")
}

func TestSession_Download_Success(t *testing.T) {
	data := archiveBytes(t, "saddle-peak-81234-caaml.xml")

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SESS", Value: "granted", Path: "/"})
		_, _ = w.Write([]byte("welcome"))
	})
	mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "STATE=MT", r.URL.RawQuery)
		cookie, err := r.Cookie("SESS")
		require.NoError(t, err, "query should carry the login cookie")
		assert.Equal(t, "granted", cookie.Value)

		w.Header().Set("Content-Disposition", `attachment; filename="mt-pits-caaml.tar.gz"`)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(FilesPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FilesPath+"mt-pits-caaml.tar.gz", r.URL.Path)
		_, _ = w.Write(data)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv.URL)
	d, err := s.Download(context.Background(), "STATE=MT")
	require.NoError(t, err)

	require.NotNil(t, d)
	assert.Equal(t, "mt-pits-caaml.tar.gz", d.Filename)
	assert.Equal(t, data, d.Data)
}

func TestSession_Download_EmptyResult(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
	}{
		{name: "no content-disposition header", disposition: ""},
		{name: "empty archive sentinel", disposition: `attachment; filename="_caaml.tar.gz"`},
		{name: "unparseable header", disposition: "attachment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("welcome"))
			})
			mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, _ *http.Request) {
				if tt.disposition != "" {
					w.Header().Set("Content-Disposition", tt.disposition)
				}
				w.WriteHeader(http.StatusOK)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			s := testSession(t, srv.URL)
			d, err := s.Download(context.Background(), "STATE=MT")
			require.NoError(t, err)
			assert.Nil(t, d)
		})
	}
}

func TestSession_Download_ReauthenticatesOn403(t *testing.T) {
	var logins, queries atomic.Int32
	data := archiveBytes(t, "bridger-66210-caaml.xml")

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		logins.Add(1)
		_, _ = w.Write([]byte("welcome"))
	})
	mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, _ *http.Request) {
		if queries.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="bridger-caaml.tar.gz"`)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(FilesPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv.URL)
	d, err := s.Download(context.Background(), "STATE=MT")
	require.NoError(t, err)

	require.NotNil(t, d)
	assert.Equal(t, int32(2), logins.Load(), "403 should force a fresh login")
	assert.Equal(t, int32(2), queries.Load())
}

func TestSession_Download_AuthErrorNotRetried(t *testing.T) {
	var logins atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		logins.Add(1)
		_, _ = w.Write([]byte("Invalid login"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv.URL)
	_, err := s.Download(context.Background(), "STATE=MT")

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(1), logins.Load(), "rejected login must not be retried")
}

func TestSession_Download_RetriesExhausted(t *testing.T) {
	var queries atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("welcome"))
	})
	mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, _ *http.Request) {
		queries.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv.URL)
	s.cfg.MaxRetries = 2

	_, err := s.Download(context.Background(), "STATE=MT")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
	assert.True(t, transportErr.Transient())
	assert.Equal(t, int32(3), queries.Load(), "initial attempt plus two retries")
}

func TestSession_Download_ClientErrorNotRetried(t *testing.T) {
	var queries atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("welcome"))
	})
	mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, _ *http.Request) {
		queries.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv.URL)
	_, err := s.Download(context.Background(), "STATE=MT")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
	assert.False(t, transportErr.Transient())
	assert.Equal(t, int32(1), queries.Load())
}

func TestSession_EstimatePitCount(t *testing.T) {
	t.Run("counts caaml members", func(t *testing.T) {
		data := archiveBytes(t, "a-100-caaml.xml", "b-101-caaml.xml", "c-102-caaml.xml")

		mux := http.NewServeMux()
		mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("welcome"))
		})
		mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Disposition", `attachment; filename="estimate-caaml.tar.gz"`)
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc(FilesPath, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(data)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		s := testSession(t, srv.URL)
		n, err := s.EstimatePitCount(context.Background(), "STATE=MT")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("empty result estimates zero", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(LoginPath, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("welcome"))
		})
		mux.HandleFunc(query.QueryPath, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		s := testSession(t, srv.URL)
		n, err := s.EstimatePitCount(context.Background(), "STATE=MT")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestSession_WaitTurnEnforcesDelay(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := &Session{
		cfg:    Config{RequestDelay: 2 * time.Second},
		clock:  clk,
		logger: discardLogger(),
	}

	// First request goes straight through.
	require.NoError(t, s.waitTurn(context.Background()))

	released := make(chan error, 1)
	go func() {
		released <- s.waitTurn(context.Background())
	}()
	require.NoError(t, clk.BlockUntilContext(context.Background(), 1))

	clk.Advance(time.Second)
	select {
	case <-released:
		t.Fatal("second request released before the full interval")
	case <-time.After(50 * time.Millisecond):
	}

	clk.Advance(time.Second)
	require.NoError(t, <-released)
}

func TestSession_WaitTurnCancelled(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := &Session{
		cfg:    Config{RequestDelay: 2 * time.Second},
		clock:  clk,
		logger: discardLogger(),
	}
	require.NoError(t, s.waitTurn(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() {
		released <- s.waitTurn(ctx)
	}()
	require.NoError(t, clk.BlockUntilContext(context.Background(), 1))

	cancel()
	assert.ErrorIs(t, <-released, context.Canceled)
}

func TestNewSession_Defaults(t *testing.T) {
	s, err := NewSession(Config{BaseURL: "https://snowpilot.org"}, discardLogger(), testMetrics(), nil)
	require.NoError(t, err)

	assert.NotNil(t, s.httpClient.Jar)
	assert.Equal(t, defaultTimeout, s.httpClient.Timeout)
	assert.NotNil(t, s.clock)
	assert.NotNil(t, s.newBackOff())
}
