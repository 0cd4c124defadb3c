package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow/internal/gateway/events"
	"nodeflow/internal/graph"
	"nodeflow/internal/runner"
)

type stubUploader struct {
	got []byte
	err error
}

func (u *stubUploader) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	u.got = data
	return "https://cdn.example/" + name, nil
}

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestMediaUploadSetsRemoteRef(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddNode(graph.Node{ID: "img", Kind: graph.KindImage}))
	up := &stubUploader{}
	h := NewMediaHandler(up, g)

	body, ct := multipartBody(t, "cat.png", "pixels")
	req := httptest.NewRequest(http.MethodPost, "/media/upload?node_id=img", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "https://cdn.example/cat.png", out["url"])
	assert.Equal(t, "pixels", string(up.got))

	n, err := g.Node("img")
	require.NoError(t, err)
	assert.Equal(t, graph.Remote("https://cdn.example/cat.png"), n.Value)
}

func TestMediaUploadRejections(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddNode(graph.Node{ID: "txt", Kind: graph.KindText}))
	require.NoError(t, g.AddNode(graph.Node{ID: "img", Kind: graph.KindImage, Value: graph.Remote("https://old")}))

	post := func(h *MediaHandler, query string) int {
		body, ct := multipartBody(t, "a.png", "x")
		req := httptest.NewRequest(http.MethodPost, "/media/upload"+query, body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.HandleUpload(rec, req)
		return rec.Code
	}
	h := NewMediaHandler(&stubUploader{}, g)
	assert.Equal(t, http.StatusBadRequest, post(h, ""))
	assert.Equal(t, http.StatusNotFound, post(h, "?node_id=missing"))
	assert.Equal(t, http.StatusBadRequest, post(h, "?node_id=txt"))

	failing := NewMediaHandler(&stubUploader{err: errors.New("no output")}, g)
	assert.Equal(t, http.StatusBadGateway, post(failing, "?node_id=img"))
	n, err := g.Node("img")
	require.NoError(t, err)
	assert.Equal(t, graph.Remote("https://old"), n.Value)

	rec := httptest.NewRecorder()
	h.HandleUpload(rec, httptest.NewRequest(http.MethodGet, "/media/upload?node_id=img", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunWatchStreamsNodeEvents(t *testing.T) {
	broker := events.NewBroker()
	srv := httptest.NewServer(http.HandlerFunc(NewRunWatchHandler(broker).HandleRunsWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?node_id=w"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg runWSOutbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "subscribed", msg.Type)

	broker.Emit(runner.Event{Type: runner.EventStarted, NodeID: "other"})
	broker.Emit(runner.Event{Type: runner.EventCompleted, NodeID: "w", Output: "done"})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "run_event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, runner.EventCompleted, msg.Event.Type)
	assert.Equal(t, "done", msg.Event.Output)

	require.NoError(t, conn.WriteJSON(runWSInbound{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)
}
