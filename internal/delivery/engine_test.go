package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webhookrelay/delivery/internal/model"
	"github.com/webhookrelay/delivery/internal/signing"
)

func TestDeliverSuccessOn2xx(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Hub-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(time.Second)
	body := []byte(`{"hello":"world"}`)
	outcome, err := e.Deliver(context.Background(), Request{TargetURL: srv.URL, SecretKey: "shh", Body: body})
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, outcome.Status)
	require.Equal(t, 200, *outcome.StatusCode)
	require.Equal(t, signing.Header([]byte("shh"), body), gotSig)
}

func TestDeliverRetryableStatusIsFailedAttempt(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		e := New(time.Second)
		outcome, err := e.Deliver(context.Background(), Request{TargetURL: srv.URL, Body: []byte(`{}`)})
		require.NoError(t, err)
		require.Equal(t, model.StatusFailedAttempt, outcome.Status, "status %d should be retryable", code)
		require.True(t, outcome.Retryable())
		require.Equal(t, code, *outcome.StatusCode)
		srv.Close()
	}
}

func TestDeliverTerminalStatusIsFailure(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 410, 501} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		e := New(time.Second)
		outcome, err := e.Deliver(context.Background(), Request{TargetURL: srv.URL, Body: []byte(`{}`)})
		require.NoError(t, err)
		require.Equal(t, model.StatusFailure, outcome.Status, "status %d should be terminal", code)
		require.False(t, outcome.Retryable())
		srv.Close()
	}
}

func TestDeliverTimeoutIsFailedAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(5 * time.Millisecond)
	outcome, err := e.Deliver(context.Background(), Request{TargetURL: srv.URL, Body: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, model.StatusFailedAttempt, outcome.Status)
	require.Nil(t, outcome.StatusCode)
}

func TestDeliverUnreachableTargetIsFailedAttempt(t *testing.T) {
	e := New(time.Second)
	outcome, err := e.Deliver(context.Background(), Request{TargetURL: "http://127.0.0.1:1", Body: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, model.StatusFailedAttempt, outcome.Status)
}

func TestDeliverWithoutSecretOmitsSignatureHeader(t *testing.T) {
	var gotSig string
	var sawSig bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig, sawSig = r.Header.Get("X-Hub-Signature-256"), r.Header.Get("X-Hub-Signature-256") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(time.Second)
	_, err := e.Deliver(context.Background(), Request{TargetURL: srv.URL, Body: []byte(`{}`)})
	require.NoError(t, err)
	require.False(t, sawSig)
	require.Empty(t, gotSig)
}
