package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/testutil"
)

func testEnv(t *testing.T, authToken string) (*testutil.Stack, http.Handler) {
	t.Helper()
	st := testutil.NewStack(t)
	router := NewRouter(st.Book, st.Sessions, authToken != "", authToken, nil)
	return st, router
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, rd))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	sum := decode[models.NoteSummary](t, w)
	if sum.Title != "Hello" || sum.ID == uuid.Nil {
		t.Fatalf("summary = %+v", sum)
	}

	w = do(t, router, http.MethodGet, "/notes/"+sum.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	doc := decode[map[string]any](t, w)
	if doc["title"] != "Hello" {
		t.Errorf("document = %v", doc)
	}

	w = do(t, router, http.MethodGet, "/notes", nil)
	list := decode[NoteListResponse](t, w)
	if list.Total != 1 || list.Notes[0].ID != sum.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestGetNote_NotFoundAndBadID(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/"+uuid.NewString(), nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown note = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestImportExportAndDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	id := uuid.New()
	md := "---\ntitle: Trip\nid: " + id.String() + "\n---\n# Plan\n  - **book** hotel\n"

	w := do(t, router, http.MethodPost, "/notes/import", md)
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	if sum := decode[models.NoteSummary](t, w); sum.ID != id || sum.Elements != 2 {
		t.Errorf("summary = %+v", sum)
	}

	if w := do(t, router, http.MethodPost, "/notes/import", md); w.Code != http.StatusConflict {
		t.Errorf("second import = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes/"+id.String()+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, "# Plan\n  - **book** hotel\n") {
		t.Errorf("export =\n%s", got)
	}
}

func TestImportBadFrontmatter(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/notes/import", "---\nid: nope\n---\n- x\n")
	if w.Code != http.StatusBadRequest {
		t.Errorf("import = %d, want 400", w.Code)
	}
}

func TestDeleteNoteClosesSessions(t *testing.T) {
	st, router := testEnv(t, "")
	n := testutil.SampleNote("Gone", "a")
	st.AddNote(t, n)
	s, err := st.Sessions.Open(n.ID)
	if err != nil {
		t.Fatal(err)
	}

	if w := do(t, router, http.MethodDelete, "/notes/"+n.ID.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/sessions/"+s.ID.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("session after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/"+n.ID.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestSessionEditUndoRedo(t *testing.T) {
	st, router := testEnv(t, "")
	n := testutil.SampleNote("Edit", "hello")
	st.AddNote(t, n)

	w := do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: n.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	sess := decode[SessionResponse](t, w)
	base := "/sessions/" + sess.ID.String()

	w = do(t, router, http.MethodPost, base+"/steps", map[string]any{
		"steps": []map[string]any{
			{"op": "type", "element": "0", "text": "!", "cursor": 5},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("steps = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[StepsResponse](t, w)
	if len(resp.Results) != 1 || !resp.History.CanUndo || resp.History.UndoName != "Typing" {
		t.Fatalf("steps response = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/notes/"+n.ID.String()+"/export", nil)
	if !strings.Contains(w.Body.String(), "- hello!\n") {
		t.Errorf("after typing:\n%s", w.Body.String())
	}

	w = do(t, router, http.MethodPost, base+"/undo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("undo = %d", w.Code)
	}
	if h := decode[models.History](t, w); h.CanUndo || !h.CanRedo {
		t.Errorf("history after undo = %+v", h)
	}
	if w := do(t, router, http.MethodPost, base+"/undo", nil); w.Code != http.StatusConflict {
		t.Errorf("undo on empty history = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/redo", nil); w.Code != http.StatusOK {
		t.Errorf("redo = %d", w.Code)
	}

	select {
	case ev := <-st.Events:
		if ev.SessionID != sess.ID || ev.Command != "Typing" {
			t.Errorf("first event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("no session event published")
	}

	w = do(t, router, http.MethodGet, base, nil)
	got := decode[SessionResponse](t, w)
	if got.State == nil || got.State.Focus == nil || !got.History.CanUndo {
		t.Errorf("session state = %+v", got)
	}

	if w := do(t, router, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Errorf("close = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/undo", nil); w.Code != http.StatusNotFound {
		t.Errorf("undo after close = %d, want 404", w.Code)
	}
}

func TestApplyStepsPartialFailure(t *testing.T) {
	st, router := testEnv(t, "")
	n := testutil.SampleNote("Partial", "a")
	st.AddNote(t, n)
	s, _ := st.Sessions.Open(n.ID)

	w := do(t, router, http.MethodPost, "/sessions/"+s.ID.String()+"/steps", map[string]any{
		"steps": []map[string]any{
			{"op": "type", "element": "0", "text": "b", "cursor": 1},
			{"op": "delete_element", "element": "7"},
		},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("steps = %d, want 404; body = %s", w.Code, w.Body.String())
	}
	resp := decode[StepsResponse](t, w)
	if len(resp.Results) != 1 || resp.Error == "" || !resp.History.CanUndo {
		t.Errorf("partial response = %+v", resp)
	}
}

func TestApplyStepsValidation(t *testing.T) {
	st, router := testEnv(t, "")
	n := testutil.SampleNote("Bad", "a")
	st.AddNote(t, n)
	s, _ := st.Sessions.Open(n.ID)
	base := "/sessions/" + s.ID.String() + "/steps"

	if w := do(t, router, http.MethodPost, base, map[string]any{"steps": []any{}}); w.Code != http.StatusBadRequest {
		t.Errorf("empty steps = %d, want 400", w.Code)
	}
	w := do(t, router, http.MethodPost, base, map[string]any{
		"steps": []map[string]any{{"op": "teleport", "element": "0"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown op = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, base, "{"); w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestOpenSessionUnknownNote(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/sessions", OpenSessionRequest{NoteID: uuid.New()}); w.Code != http.StatusNotFound {
		t.Errorf("open = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/sessions", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("open without note = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	st, router := testEnv(t, "")
	st.AddNote(t, testutil.SampleNote("Kitchen", "buy saffron"))
	st.AddNote(t, testutil.SampleNote("Garage", "fix bike"))

	w := do(t, router, http.MethodGet, "/search?q=saffron", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Kitchen" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestFileUploadListServe(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "../../photo.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("pngdata"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	fi := decode[models.FileInfo](t, w)
	if fi.Name != "photo.png" || fi.Size != 7 {
		t.Errorf("file = %+v", fi)
	}

	w = do(t, router, http.MethodGet, "/files", nil)
	if list := decode[FileListResponse](t, w); len(list.Files) != 1 || list.Files[0].Refs != 0 {
		t.Errorf("files = %+v", list.Files)
	}

	w = do(t, router, http.MethodGet, "/files/"+fi.ID.String(), nil)
	if w.Code != http.StatusOK || w.Body.String() != "pngdata" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/files/"+uuid.NewString(), nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown file = %d, want 404", w.Code)
	}
}

func TestFileUploadMissingField(t *testing.T) {
	_, router := testEnv(t, "")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("upload without file = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("without token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes?access_token=secret123", CreateNoteRequest{Title: "x"}); w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/notes?access_token=secret123", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("non-bearer header = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	st := testutil.NewStack(t)

	// Minimal SSE handler stub: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(st.Book, st.Sessions, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
