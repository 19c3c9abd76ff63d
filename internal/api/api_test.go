package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/api"
	"agentdesk/internal/core"
	"agentdesk/internal/store"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type testApp struct {
	handler http.Handler
	session *core.Session
	store   *store.Store
}

func newApp(t *testing.T, agentHandler http.Handler, token string) *testApp {
	t.Helper()

	agentSrv := httptest.NewServer(agentHandler)
	t.Cleanup(agentSrv.Close)

	client, err := agent.NewClient(agentSrv.URL, agentSrv.Client())
	if err != nil {
		t.Fatalf("agent.NewClient err=%v", err)
	}
	st, err := store.Open(context.Background(), t.TempDir(), 10)
	if err != nil {
		t.Fatalf("store.Open err=%v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session, err := core.NewSession(client,
		core.WithLogger(logger),
		core.WithCompletionHook(func(ctx context.Context, c core.Completion) {
			if err := st.InsertSubmission(ctx, core.SubmissionFromCompletion(c)); err != nil {
				t.Errorf("InsertSubmission err=%v", err)
			}
		}),
	)
	if err != nil {
		t.Fatalf("NewSession err=%v", err)
	}
	t.Cleanup(session.Wait)

	srv := api.NewServer("127.0.0.1:0", api.Deps{
		Session:   session,
		History:   st,
		Logger:    logger,
		Location:  time.UTC,
		AuthToken: token,
	})
	return &testApp{handler: srv.Handler(), session: session, store: st}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body err=%v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q err=%v", rr.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func successAgent(output string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status":
			w.WriteHeader(http.StatusOK)
		case "/api/agent/run":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"success":true,"task":"t","timestamp":"2024-01-01T00:00:00Z","output":"`+output+`","files":[{"path":"/files/a.txt","name":"a.txt","size":1536}]}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestGetSessionInitialView(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	rr := doJSON(t, app.handler, http.MethodGet, "/v1/session", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	v := decode[core.View](t, rr)
	if v.Status != core.StatusDisconnected || v.Running || v.Result != nil || v.Error != nil {
		t.Fatalf("unexpected initial view %+v", v)
	}
	if len(v.QuickTasks) != 4 {
		t.Fatalf("quick tasks=%d", len(v.QuickTasks))
	}
}

func TestProbeUpdatesStatus(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/status/probe", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	got := decode[map[string]string](t, rr)
	if got["status"] != string(core.StatusConnected) || got["label"] != "🟢 Connected" {
		t.Fatalf("probe=%v", got)
	}
}

func TestStatusCheckOutlivesClientCancel(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/status/probe", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := app.session.Status(); got != core.StatusConnected {
		t.Fatalf("a client hanging up must not mark the agent %s", got)
	}
}

func TestSubmitWithTaskBody(t *testing.T) {
	var mu sync.Mutex
	var tasks []string
	app := newApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Task string `json:"task"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		tasks = append(tasks, req.Task)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"success":true,"output":"ok"}`)
	}), "")
	app.session.SetInput("stale text from another tab")

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/submit", map[string]string{"task": " fresh task "})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	app.session.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(tasks) != 1 || tasks[0] != "fresh task" {
		t.Fatalf("agent saw %v", tasks)
	}
	if got := app.session.Input(); got != " fresh task " {
		t.Fatalf("input=%q", got)
	}

	rr = doJSON(t, app.handler, http.MethodPost, "/v1/session/submit", map[string]string{"task": "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank body task status=%d", rr.Code)
	}
}

func TestKeyWithTaskBody(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/key", map[string]any{"key": "Enter", "shift": true, "task": "line one"})
	if got := decode[map[string]any](t, rr); got["prevent_default"] != false {
		t.Fatalf("shift+enter: %v", got)
	}
	if app.session.Input() != "line one" || app.session.State() != core.RunIdle {
		t.Fatalf("input=%q state=%v", app.session.Input(), app.session.State())
	}

	rr = doJSON(t, app.handler, http.MethodPost, "/v1/session/key", map[string]any{"key": "Enter", "task": "line two"})
	if got := decode[map[string]any](t, rr); got["prevent_default"] != true || got["warning"] != nil {
		t.Fatalf("enter: %v", got)
	}
	app.session.Wait()
	if app.session.Input() != "line two" || app.session.Outcome() == nil {
		t.Fatalf("input=%q outcome=%v", app.session.Input(), app.session.Outcome())
	}
}

func TestSubmitRunsTaskAndRecordsHistory(t *testing.T) {
	app := newApp(t, successAgent("done"), "")

	rr := doJSON(t, app.handler, http.MethodPut, "/v1/session/input", map[string]string{"task": "  do it  "})
	if rr.Code != http.StatusOK {
		t.Fatalf("input status=%d", rr.Code)
	}
	rr = doJSON(t, app.handler, http.MethodPost, "/v1/session/submit", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	app.session.Wait()

	v := decode[core.View](t, doJSON(t, app.handler, http.MethodGet, "/v1/session", nil))
	if v.Result == nil || v.Error != nil {
		t.Fatalf("expected result, got %+v", v)
	}
	if v.Result.Output != "done" || v.Result.Files[0].SizeLabel != "1.5 KB" {
		t.Fatalf("result=%+v", v.Result)
	}

	rr = doJSON(t, app.handler, http.MethodGet, "/v1/history?limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("history status=%d", rr.Code)
	}
	var list struct {
		Items []struct {
			ID      string `json:"id"`
			Task    string `json:"task"`
			Outcome string `json:"outcome"`
			Files   []struct {
				SizeLabel string `json:"size_label"`
				URL       string `json:"url"`
			} `json:"files"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 1 || list.Items[0].Task != "do it" || list.Items[0].Outcome != "success" {
		t.Fatalf("history=%s", rr.Body.String())
	}
	if !strings.HasSuffix(list.Items[0].Files[0].URL, "/files/a.txt") {
		t.Fatalf("file url=%q", list.Items[0].Files[0].URL)
	}

	rr = doJSON(t, app.handler, http.MethodGet, "/v1/history/"+list.Items[0].ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get history status=%d", rr.Code)
	}
	rr = doJSON(t, app.handler, http.MethodGet, "/v1/history/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing history status=%d", rr.Code)
	}
}

func TestSubmitEmptyTask(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/submit", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Error.Code != "empty_task" {
		t.Fatalf("error=%+v", body)
	}
	v := decode[core.View](t, doJSON(t, app.handler, http.MethodGet, "/v1/session", nil))
	if v.Warning == "" {
		t.Fatal("expected a validation warning")
	}
}

func TestSubmitWhileRunningIsBusy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	app := newApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = io.WriteString(w, `{"success":true}`)
	}), "")
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	doJSON(t, app.handler, http.MethodPut, "/v1/session/input", map[string]string{"task": "slow"})
	if rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/submit", nil); rr.Code != http.StatusAccepted {
		t.Fatalf("first submit status=%d", rr.Code)
	}
	<-entered

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/submit", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second submit status=%d", rr.Code)
	}
	v := decode[core.View](t, doJSON(t, app.handler, http.MethodGet, "/v1/session", nil))
	if !v.Running || v.Result != nil || v.Error != nil {
		t.Fatalf("expected running view without outcome, got %+v", v)
	}

	unblock()
	app.session.Wait()
	v = decode[core.View](t, doJSON(t, app.handler, http.MethodGet, "/v1/session", nil))
	if v.Running || v.Result == nil || v.Result.Output != core.PlaceholderOutput {
		t.Fatalf("unexpected final view %+v", v)
	}
}

func TestKeyEvents(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	for _, ev := range []core.KeyEvent{
		{Key: "Enter", Shift: true},
		{Key: "Enter", Ctrl: true},
		{Key: "a"},
	} {
		rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/key", ev)
		got := decode[map[string]any](t, rr)
		if got["prevent_default"] != false {
			t.Fatalf("%+v: got %v", ev, got)
		}
	}

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/key", core.KeyEvent{Key: "Enter"})
	got := decode[map[string]any](t, rr)
	if got["prevent_default"] != true || got["warning"] == nil {
		t.Fatalf("empty enter: %v", got)
	}

	doJSON(t, app.handler, http.MethodPost, "/v1/session/quick/recipe", nil)
	rr = doJSON(t, app.handler, http.MethodPost, "/v1/session/key", core.KeyEvent{Key: "Enter"})
	got = decode[map[string]any](t, rr)
	if got["prevent_default"] != true || got["warning"] != nil {
		t.Fatalf("enter: %v", got)
	}
	app.session.Wait()
	if app.session.Outcome() == nil {
		t.Fatal("expected an outcome after Enter")
	}
}

func TestQuickTask(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/quick/ai-news", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	v := decode[core.View](t, rr)
	if v.Input != core.DefaultQuickTasks()[1].Text || v.Running {
		t.Fatalf("quick task should fill input without running: %+v", v)
	}
	if rr := doJSON(t, app.handler, http.MethodPost, "/v1/session/quick/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown quick task status=%d", rr.Code)
	}
}

func TestInvalidJSON(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")

	req := httptest.NewRequest(http.MethodPut, "/v1/session/input", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestAuthToken(t *testing.T) {
	app := newApp(t, successAgent("ok"), "s3cret")

	if rr := doJSON(t, app.handler, http.MethodGet, "/v1/session", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", rr.Code)
	}
	if rr := doJSON(t, app.handler, http.MethodGet, "/v1/session?token=s3cret", nil); rr.Code != http.StatusOK {
		t.Fatalf("query token status=%d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("bearer status=%d", rr.Code)
	}
	if rr := doJSON(t, app.handler, http.MethodGet, "/", nil); rr.Code != http.StatusOK {
		t.Fatalf("index should not need a token, status=%d", rr.Code)
	}
}

func TestWebSocketPushesViews(t *testing.T) {
	app := newApp(t, successAgent("ok"), "")
	srv := httptest.NewServer(app.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial err=%v", err)
	}
	defer conn.CloseNow()

	var v core.View
	if err := wsjson.Read(ctx, conn, &v); err != nil {
		t.Fatalf("initial read err=%v", err)
	}
	if v.Input != "" {
		t.Fatalf("initial input=%q", v.Input)
	}

	app.session.SetInput("hello")
	for v.Input != "hello" {
		if err := wsjson.Read(ctx, conn, &v); err != nil {
			t.Fatalf("read err=%v", err)
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
