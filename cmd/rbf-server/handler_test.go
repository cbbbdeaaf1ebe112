package main

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/njchilds90/rbf"
	"github.com/njchilds90/rbf/symbolic"
)

func newTestServer(t *testing.T, backend rbf.Backend) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newServer(zap.NewNop(), backend).routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/evaluate", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestEvaluate_Kernel(t *testing.T) {
	for _, backend := range []rbf.Backend{rbf.Closure, rbf.Bytecode} {
		ts := newTestServer(t, backend)
		resp, out := post(t, ts, `{"kernel":"ga","x":[[0,0],[1,0]],"c":[[0,0]],"eps":1}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, backend.String())

		var result [][]*float64
		require.NoError(t, json.Unmarshal(out["result"], &result))
		require.Len(t, result, 2)
		assert.InDelta(t, 1.0, *result[0][0], 1e-15)
		assert.InDelta(t, math.Exp(-1), *result[1][0], 1e-15)
	}
}

func TestEvaluate_Expression(t *testing.T) {
	sinc := symbolic.QuoOf(symbolic.SinOf(rbf.R()), rbf.R())
	wire, err := symbolic.ToJSON(sinc)
	require.NoError(t, err)

	ts := newTestServer(t, rbf.Closure)
	resp, out := post(t, ts, `{"expr":`+wire+`,"tol":1e-8,"x":[[0],[0.5]],"c":[[0]],"eps":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(out["error"]))

	var result [][]*float64
	require.NoError(t, json.Unmarshal(out["result"], &result))
	assert.Equal(t, 1.0, *result[0][0])
	assert.InDelta(t, math.Sin(1), *result[1][0], 1e-15)
}

func TestEvaluate_NaNIsNull(t *testing.T) {
	wire, err := symbolic.ToJSON(rbf.R())
	require.NoError(t, err)

	ts := newTestServer(t, rbf.Closure)
	resp, out := post(t, ts, `{"expr":`+wire+`,"x":[[0]],"c":[[0]],"diff":[1]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[[null]]`, string(out["result"]))
}

func TestEvaluate_BadRequests(t *testing.T) {
	ts := newTestServer(t, rbf.Closure)
	cases := map[string]string{
		"shape mismatch": `{"kernel":"ga","x":[[0,0]],"c":[[0,0,0]]}`,
		"unknown kernel": `{"kernel":"nope","x":[[0]],"c":[[0]]}`,
		"extra symbol":   `{"expr":{"type":"sym","name":"y"},"x":[[0]],"c":[[0]]}`,
		"missing rbf":    `{"x":[[0]],"c":[[0]]}`,
		"unknown field":  `{"kernel":"ga","x":[[0]],"c":[[0]],"bogus":1}`,
		"negative diff":  `{"kernel":"ga","x":[[0]],"c":[[0]],"diff":[-1]}`,
	}
	for name, body := range cases {
		resp, out := post(t, ts, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.NotEmpty(t, out["error"], name)
	}
}

func TestEvaluate_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, rbf.Closure)
	resp, err := http.Get(ts.URL + "/evaluate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestKernels(t *testing.T) {
	ts := newTestServer(t, rbf.Closure)
	resp, err := http.Get(ts.URL + "/kernels")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Kernels []kernelInfo `json:"kernels"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Kernels, len(rbf.KernelNames()))
	for _, k := range body.Kernels {
		if k.Name == "phs3" {
			assert.NotEmpty(t, k.Tolerance)
			assert.Positive(t, k.Limits)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, rbf.Closure)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
