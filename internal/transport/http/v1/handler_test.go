package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/runwatch/internal/adapter/runclient"
	"github.com/xiaot623/gogo/runwatch/internal/config"
	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/policy"
	"github.com/xiaot623/gogo/runwatch/internal/service"
	"github.com/xiaot623/gogo/runwatch/internal/state"
	"github.com/xiaot623/gogo/runwatch/internal/testutil"
)

func completingScript(ctx context.Context, fw *testutil.FrameWriter, req domain.RunRequest) {
	for _, agent := range req.SelectedAgents {
		fw.Send("progress", map[string]any{"agent": agent + "_agent", "status": "Done"})
	}
	fw.Send("complete", map[string]any{"data": map[string]any{
		"decisions":       map[string]any{"AAPL": map[string]any{"action": "hold"}},
		"analyst_signals": map[string]any{},
	}})
}

func newTestHandler(t *testing.T, script testutil.Script) (*Handler, *service.Service) {
	t.Helper()

	backend := testutil.NewBackend(t, script)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	client := runclient.NewClient(backend.URL, testutil.RunPath).WithHTTPClient(backend.Client())
	svc := service.New(state.NewStore(), state.NewModelOverrides(), client,
		testutil.NewTestSQLiteStore(t), engine, &config.Config{InitialCash: 1000})
	t.Cleanup(func() { svc.CancelRun(context.Background()) })
	return NewHandler(svc), svc
}

func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func waitRun(t *testing.T, svc *service.Service) *domain.Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := svc.Wait(ctx)
	require.NoError(t, err)
	return run
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, completingScript)

	c, rec := newContext(e, http.MethodGet, "/health", "")
	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestRunLifecycle(t *testing.T) {
	e := echo.New()
	h, svc := newTestHandler(t, completingScript)

	c, rec := newContext(e, http.MethodGet, "/v1/output", "")
	require.NoError(t, h.GetOutput(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(e, http.MethodPost, "/v1/runs",
		`{"tickers":["AAPL"],"selected_agents":["warren_buffett","michael_burry"]}`)
	require.NoError(t, h.StartRun(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, domain.RunStatusRunning, started.Status)
	assert.Equal(t, []string{"AAPL"}, started.Tickers)

	waitRun(t, svc)

	c, rec = newContext(e, http.MethodGet, "/v1/output", "")
	require.NoError(t, h.GetOutput(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"decisions":{"AAPL":{"action":"hold"}},"analyst_signals":{}}`, rec.Body.String())

	c, rec = newContext(e, http.MethodGet, "/v1/state", "")
	require.NoError(t, h.GetState(c))
	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Agents, 2)

	c, rec = newContext(e, http.MethodGet, "/v1/agents/warren_buffett", "")
	c.SetParamNames("agent_id")
	c.SetParamValues("warren_buffett")
	require.NoError(t, h.GetAgent(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"COMPLETE"`)

	c, rec = newContext(e, http.MethodGet, "/v1/runs/"+started.RunID+"/events", "")
	c.SetParamNames("run_id")
	c.SetParamValues(started.RunID)
	require.NoError(t, h.GetRunEvents(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var eventsResp struct {
		Events []domain.JournalEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eventsResp))
	assert.Len(t, eventsResp.Events, 4)

	c, rec = newContext(e, http.MethodGet, "/v1/runs", "")
	require.NoError(t, h.ListRuns(c))
	assert.Contains(t, rec.Body.String(), started.RunID)

	c, rec = newContext(e, http.MethodPost, "/v1/runs/cancel", "")
	require.NoError(t, h.CancelRun(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartRunValidation(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, completingScript)

	c, rec := newContext(e, http.MethodPost, "/v1/runs", `{"tickers":`)
	require.NoError(t, h.StartRun(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(e, http.MethodPost, "/v1/runs", `{"tickers":["AAPL"],"selected_agents":[]}`)
	require.NoError(t, h.StartRun(c))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error   string   `json:"error"`
		Reasons []string `json:"reasons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"at least one agent must be selected"}, resp.Reasons)
}

func TestCancelActiveRun(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, func(ctx context.Context, fw *testutil.FrameWriter, req domain.RunRequest) {
		fw.Send("progress", map[string]any{"agent": "warren_buffett", "status": "Analyzing"})
		<-ctx.Done()
	})

	c, rec := newContext(e, http.MethodPost, "/v1/runs", `{"tickers":["AAPL"],"selected_agents":["warren_buffett"]}`)
	require.NoError(t, h.StartRun(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	c, rec = newContext(e, http.MethodPost, "/v1/runs/cancel", "")
	require.NoError(t, h.CancelRun(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"CANCELLED"`)
}

func TestGetRunEventsNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, completingScript)

	c, rec := newContext(e, http.MethodGet, "/v1/runs/run_nope/events", "")
	c.SetParamNames("run_id")
	c.SetParamValues("run_nope")
	require.NoError(t, h.GetRunEvents(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAgentNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, completingScript)

	c, rec := newContext(e, http.MethodGet, "/v1/agents/nobody", "")
	c.SetParamNames("agent_id")
	c.SetParamValues("nobody")
	require.NoError(t, h.GetAgent(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverrides(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, completingScript)

	c, rec := newContext(e, http.MethodPut, "/v1/overrides/warren_buffett", `{"provider":"OpenAI"}`)
	c.SetParamNames("agent_id")
	c.SetParamValues("warren_buffett")
	require.NoError(t, h.SetOverride(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(e, http.MethodPut, "/v1/overrides/warren_buffett", `{"model_name":"gpt-4o","provider":"OpenAI"}`)
	c.SetParamNames("agent_id")
	c.SetParamValues("warren_buffett")
	require.NoError(t, h.SetOverride(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/v1/overrides/warren_buffett", "")
	c.SetParamNames("agent_id")
	c.SetParamValues("warren_buffett")
	require.NoError(t, h.GetOverride(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"model_name":"gpt-4o","provider":"OpenAI"}`, rec.Body.String())

	c, rec = newContext(e, http.MethodGet, "/v1/overrides", "")
	require.NoError(t, h.ListOverrides(c))
	assert.JSONEq(t, `{"overrides":{"warren_buffett":{"model_name":"gpt-4o","provider":"OpenAI"}}}`, rec.Body.String())

	c, rec = newContext(e, http.MethodDelete, "/v1/overrides/warren_buffett", "")
	c.SetParamNames("agent_id")
	c.SetParamValues("warren_buffett")
	require.NoError(t, h.DeleteOverride(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/v1/overrides/warren_buffett", "")
	c.SetParamNames("agent_id")
	c.SetParamValues("warren_buffett")
	require.NoError(t, h.GetOverride(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
