package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/config"
	"github.com/wyfcoding/versioned/idgen"
	"github.com/wyfcoding/versioned/metrics"
	"github.com/wyfcoding/versioned/service"
)

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Msg    string          `json:"msg"`
	Detail string          `json:"detail"`
	Code   int             `json:"code"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ids, err := idgen.NewGenerator(config.SnowflakeConfig{MachineID: 2})
	require.NoError(t, err)
	svc := service.New(config.EngineConfig{MaxPositions: 1000}, ids)
	return NewRouter(NewHandler(svc, nil, nil), RouterOptions{
		Metrics:     metrics.NewMetrics("versioned-api-test"),
		ServiceName: "versioned-api-test",
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestSegmentEndpoints(t *testing.T) {
	h := newTestRouter(t)

	code, env := do(t, h, http.MethodPost, "/v1/segments", map[string]any{"values": []int64{1, 2, 3, 4, 5}})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	info := decode[service.Info](t, env)

	base := "/v1/segments/" + info.ID
	code, env = do(t, h, http.MethodPost, base+"/versions/0/update", map[string]any{"lo": 2, "hi": 4, "delta": 10})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	assert.Equal(t, 1, int(decode[VersionReply](t, env).Version))

	code, env = do(t, h, http.MethodGet, base+"/versions/1/query?lo=1&hi=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(45), decode[ValueReply](t, env).Value)
	code, env = do(t, h, http.MethodGet, base+"/versions/0/query?lo=1&hi=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(15), decode[ValueReply](t, env).Value)

	code, env = do(t, h, http.MethodGet, base+"/versions/0/query?lo=4&hi=2", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 400101, env.Code)

	code, env = do(t, h, http.MethodGet, base+"/versions/9/query?lo=1&hi=5", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 404101, env.Code)

	code, _ = do(t, h, http.MethodGet, base+"/versions/x/query?lo=1&hi=5", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodGet, base+"/versions/0/query?lo=1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, h, http.MethodPost, "/v1/containers/"+info.ID+"/checkout", map[string]any{"version": 0})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	code, env = do(t, h, http.MethodGet, base+"/versions/2/values", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string][]int64{"values": {1, 2, 3, 4, 5}}, decode[map[string][]int64](t, env))

	code, _ = do(t, h, http.MethodGet, "/v1/containers/"+info.ID+"/versions/1/audit", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodPost, "/v1/segments", map[string]any{"values": []int64{}})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodPost, "/v1/segments", map[string]any{"values": []int64{1}, "aggregator": "avg"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetEndpoints(t *testing.T) {
	h := newTestRouter(t)

	code, env := do(t, h, http.MethodPost, "/v1/sets", map[string]any{"seed": 7})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	info := decode[service.Info](t, env)
	base := "/v1/sets/" + info.ID

	v := 0
	for _, key := range []int64{5, 3, 8} {
		code, env = do(t, h, http.MethodPost, base+"/versions/"+strconv.Itoa(v)+"/insert", map[string]any{"key": key})
		require.Equal(t, http.StatusCreated, code, env.Detail)
		v = int(decode[VersionReply](t, env).Version)
	}
	code, env = do(t, h, http.MethodPost, base+"/versions/3/delete", map[string]any{"key": 5})
	require.Equal(t, http.StatusCreated, code, env.Detail)

	code, env = do(t, h, http.MethodGet, base+"/versions/3/kth?k=2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(5), decode[ValueReply](t, env).Value)
	code, env = do(t, h, http.MethodGet, base+"/versions/4/kth?k=2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(8), decode[ValueReply](t, env).Value)
	code, env = do(t, h, http.MethodGet, base+"/versions/3/rank?key=8", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]int{"rank": 3}, decode[map[string]int](t, env))
	code, env = do(t, h, http.MethodGet, base+"/versions/4/keys", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string][]int64{"keys": {3, 8}}, decode[map[string][]int64](t, env))

	code, env = do(t, h, http.MethodGet, base+"/versions/4/kth?k=3", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 400102, env.Code)

	code, _ = do(t, h, http.MethodPost, base+"/versions/0/insert", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	// 对有序集合调用线段树接口。
	code, _ = do(t, h, http.MethodGet, "/v1/segments/"+info.ID+"/versions/0/query?lo=1&hi=1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestForestAggregateEndpoint(t *testing.T) {
	h := newTestRouter(t)
	code, env := do(t, h, http.MethodPost, "/v1/forest/aggregate", map[string]any{
		"parent": []int{-1, 0, 0, 1, 1},
		"values": []int64{5, 3, 8, 4, 3},
	})
	require.Equal(t, http.StatusOK, code, env.Detail)
	res := decode[map[string][]int64](t, env)
	assert.Equal(t, []int64{1, 1, 0, 0, 0}, res["greater_than_self"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t)
	code, _ := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestUnknownContainer(t *testing.T) {
	h := newTestRouter(t)
	code, env := do(t, h, http.MethodGet, "/v1/containers/42", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 404102, env.Code)
	code, _ = do(t, h, http.MethodDelete, "/v1/containers/42", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
