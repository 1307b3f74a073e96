// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/estimator"
	"github.com/luxfi/estimator/internal/queue"
	"github.com/luxfi/estimator/internal/service"
	"github.com/luxfi/estimator/internal/storage"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *queue.RedisQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := queue.NewRedisQueue(queue.RedisConfig{Addr: mr.Addr()}, "server-test")
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	svc := service.New(storage.NewMemoryStorage(16), service.Options{MaxEvaluations: 50})
	srv, err := New(cfg, svc, q, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, q
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServerCatalog(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	resp := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	health := decode[map[string]any](t, resp)
	require.Equal(t, "ok", health["status"])
	require.EqualValues(t, 0, health["queue_depth"])

	models := decode[map[string][]string](t, get(t, ts.URL+"/models"))
	require.Contains(t, models["models"], "sieve")

	sets := decode[[]estimator.ParameterSet](t, get(t, ts.URL+"/params"))
	require.Len(t, sets, len(estimator.AllParameterSets()))

	ps := decode[estimator.ParameterSet](t, get(t, ts.URL+"/params/example_64"))
	require.Equal(t, estimator.Example64.Params, ps.Params)

	require.Equal(t, http.StatusNotFound, get(t, ts.URL+"/params/kyber512").StatusCode)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/estimate", nil)
	require.NoError(t, err)
	opt, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	opt.Body.Close()
	require.Equal(t, http.StatusOK, opt.StatusCode)
}

func TestServerEstimate(t *testing.T) {
	ts, _ := newTestServer(t, Config{MaxBatch: 2})

	resp := post(t, ts.URL+"/estimate", `{"set":"example_64","tau":250,"beta":100}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[service.Result](t, resp)
	require.InDelta(t, 65.07, float64(res.Report.Rop), 0.2)
	require.False(t, res.Cached)

	report := decode[estimator.CostReport](t, get(t, ts.URL+"/reports/"+string(res.Handle)))
	require.Equal(t, res.Report, report)

	for name, tc := range map[string]struct {
		body   string
		status int
	}{
		"Malformed":    {`{"set":`, http.StatusBadRequest},
		"UnknownField": {`{"set":"example_64","colour":"red"}`, http.StatusBadRequest},
		"UnknownSet":   {`{"set":"kyber512"}`, http.StatusBadRequest},
		"Domain":       {`{"set":"example_64","tau":5000,"beta":100}`, http.StatusBadRequest},
		"Limit":        {`{"set":"example_64","given_samples":true}`, http.StatusUnprocessableEntity},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.status, post(t, ts.URL+"/estimate", tc.body).StatusCode)
		})
	}

	t.Run("MissingReport", func(t *testing.T) {
		missing := storage.ComputeHandle([]byte("nothing"))
		require.Equal(t, http.StatusNotFound, get(t, ts.URL+"/reports/"+string(missing)).StatusCode)
	})

	t.Run("Batch", func(t *testing.T) {
		body := `{"requests":[{"set":"example_64","tau":250,"beta":100},{"set":"kyber512"}]}`
		resp := post(t, ts.URL+"/estimate/batch", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		batch := decode[BatchResponse](t, resp)
		require.Equal(t, 2, batch.Stats.Total)
		require.Equal(t, 1, batch.Stats.Succeeded)
		require.Equal(t, 1, batch.Stats.Cached)
		require.NotNil(t, batch.Results[0].Result)
		require.NotEmpty(t, batch.Results[1].Error)

		var many bytes.Buffer
		many.WriteString(`{"requests":[`)
		for i := range 3 {
			if i > 0 {
				many.WriteByte(',')
			}
			fmt.Fprintf(&many, `{"set":"example_64","tau":%d,"beta":100}`, 100*i)
		}
		many.WriteString(`]}`)
		require.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/estimate/batch", many.String()).StatusCode)
	})
}

func TestServerJobs(t *testing.T) {
	ts, q := newTestServer(t, Config{AsyncOnly: true})

	require.Equal(t, http.StatusNotFound,
		post(t, ts.URL+"/estimate", `{"set":"example_64"}`).StatusCode)

	resp := post(t, ts.URL+"/jobs", `{"attack":"hybrid-dual","set":"example_64"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	view := decode[JobView](t, resp)
	require.NotEmpty(t, view.ID)
	require.Equal(t, "pending", view.Status)

	job, err := q.Get(t.Context(), view.ID)
	require.NoError(t, err)
	var queued service.Request
	require.NoError(t, json.Unmarshal(job.Request, &queued))
	require.Equal(t, estimator.AttackHybridDual, queued.Attack)
	require.NotNil(t, queued.Params, "queued requests are normalized")

	job.Status = queue.StatusCompleted
	job.ReportHandle = "abc"
	require.NoError(t, q.Update(t.Context(), job))

	got := decode[JobView](t, get(t, ts.URL+"/jobs/"+view.ID))
	require.Equal(t, "completed", got.Status)
	require.Equal(t, "abc", got.ReportHandle)

	require.Equal(t, http.StatusNotFound, get(t, ts.URL+"/jobs/missing").StatusCode)
	require.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/jobs", `{"set":"kyber512"}`).StatusCode)
}

func TestStatusOf(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", service.ErrBadRequest), http.StatusBadRequest},
		{&estimator.DomainError{Op: "search", Reason: "empty"}, http.StatusBadRequest},
		{storage.ErrNotFound, http.StatusNotFound},
		{queue.ErrJobNotFound, http.StatusNotFound},
		{&estimator.ResourceLimitError{Limit: "evaluations"}, http.StatusUnprocessableEntity},
		{&estimator.ResourceLimitError{Limit: "time"}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	} {
		require.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	require.Error(t, err)
	svc := service.New(storage.NewMemoryStorage(1), service.Options{})
	_, err = New(Config{AsyncOnly: true}, svc, nil, nil)
	require.Error(t, err)
}
