//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jsphweid/harmonia/cmd"
	"github.com/jsphweid/harmonia/config"
	"github.com/jsphweid/harmonia/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	ts, _ := newServerWith(t, config.Default())
	return ts
}

func newServerWith(t *testing.T, cfg *config.Config) (*httptest.Server, *cmd.Server) {
	cfg.Seed = 42
	cfg.Tempo = 60000
	cfg.PollInterval = time.Millisecond
	s := cmd.NewServer(cfg, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts, s
}

func post(t *testing.T, url string, body any) *http.Response {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[A any](t *testing.T, resp *http.Response) A {
	defer resp.Body.Close()
	var res A
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &res), string(data))
	return res
}

func create(t *testing.T, ts *httptest.Server, strategy string) model.MeasureResponse {
	resp := post(t, ts.URL+"/compositions", model.CreateRequestBody{Strategy: strategy})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.MeasureResponse](t, resp)
}

func TestComposeOverHTTP(t *testing.T) {
	assert := assert.New(t)
	ts := newServer(t)

	created := create(t, ts, "chorale")
	assert.Equal("chorale", created.Strategy)
	assert.Equal("key: C major; chord: C", created.Measure.Annotation)

	var got int
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/compositions/" + created.ID + "/next")
		if err != nil {
			return false
		}
		if resp.StatusCode == http.StatusOK {
			m := decode[model.MeasureResponse](t, resp)
			assert.Contains(m.Measure.Annotation, "chord: ")
			got++
		} else {
			resp.Body.Close()
		}
		return got == 10
	}, 10*time.Second, time.Millisecond)

	resp := post(t, ts.URL+"/compositions/"+created.ID+"/input", model.InputRequestBody{Command: "switch"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	switched := decode[model.MeasureResponse](t, resp)
	assert.NotEqual("chorale", switched.Strategy)
	assert.NotEqual(created.CompositionID, switched.CompositionID)

	resp = post(t, ts.URL+"/compositions/"+created.ID+"/input", model.InputRequestBody{Command: "louder"})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = post(t, ts.URL+"/compositions/"+created.ID+"/finish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	finished := decode[model.FinishResponse](t, resp)
	assert.Equal(switched.CompositionID, finished.ID)
	assert.Equal(1, finished.Played)
	assert.False(finished.Archived)

	resp, err := http.Get(ts.URL + "/compositions/" + created.ID + "/next")
	require.NoError(t, err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateRejectsUnknownStrategy(t *testing.T) {
	ts := newServer(t)
	resp := post(t, ts.URL+"/compositions", model.CreateRequestBody{Strategy: "serialism"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	res := decode[model.ErrorResponse](t, resp)
	assert.Contains(t, res.Error, "serialism")
}

func TestStreamMeasures(t *testing.T) {
	assert := assert.New(t)
	ts := newServer(t)
	created := create(t, ts, "modulating")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/compositions/" + created.ID + "/stream?limit=5"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 1; i <= 5; i++ {
		var msg model.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(i, msg.Index)
		assert.Empty(msg.Error)
		require.NotNil(t, msg.Measure)
		assert.True(msg.Measure.Has(model.Piano))
	}
	_, _, err = conn.ReadMessage()
	assert.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestIdleSessionsAreReaped(t *testing.T) {
	assert := assert.New(t)
	cfg := config.Default()
	cfg.IdleTimeout = time.Minute
	ts, s := newServerWith(t, cfg)

	first := create(t, ts, "chorale")
	second := create(t, ts, "polyphony")

	assert.Empty(s.Reap(context.Background(), time.Now().Add(30*time.Second)))
	resp, err := http.Get(ts.URL + "/compositions/" + first.ID + "/next")
	require.NoError(t, err)
	assert.NotEqual(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	reaped := s.Reap(context.Background(), time.Now().Add(2*time.Minute))
	assert.ElementsMatch([]string{first.ID, second.ID}, reaped)
	for _, id := range reaped {
		resp, err := http.Get(ts.URL + "/compositions/" + id + "/next")
		require.NoError(t, err)
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestZeroIdleTimeoutKeepsSessions(t *testing.T) {
	cfg := config.Default()
	cfg.IdleTimeout = 0
	ts, s := newServerWith(t, cfg)
	create(t, ts, "chorale")
	assert.Empty(t, s.Reap(context.Background(), time.Now().Add(24*time.Hour)))
}
