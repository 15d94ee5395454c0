package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jchatbot/jchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator returns a canned reply or error and records what it was
// asked.
type stubGenerator struct {
	reply       string
	err         error
	lastMessage string
	lastHistory []models.HistoryEntry
}

func (g *stubGenerator) Reply(_ context.Context, history []models.HistoryEntry, message string) (string, error) {
	g.lastMessage = message
	g.lastHistory = history
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) Model() string { return "stub-model" }

func testServer(gen Generator) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("0", gen, logger)
}

func postChat(t *testing.T, srv *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	gen := &stubGenerator{reply: "Hello back!"}
	srv := testServer(gen)

	rec := postChat(t, srv, map[string]any{
		"message":   "Hello",
		"userId":    "user-1",
		"sessionId": "session-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello back!", resp["response"])
	assert.Equal(t, "Hello", gen.lastMessage)
}

func TestChatRejectsNonPost(t *testing.T) {
	srv := testServer(&stubGenerator{reply: "x"})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatRequiresMessage(t *testing.T) {
	srv := testServer(&stubGenerator{reply: "x"})

	for name, body := range map[string]any{
		"empty message": map[string]any{"message": ""},
		"blank message": map[string]any{"message": "   "},
		"no message":    map[string]any{"userId": "u"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := postChat(t, srv, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Message is required", resp["error"])
		})
	}
}

func TestChatMalformedBody(t *testing.T) {
	srv := testServer(&stubGenerator{reply: "x"})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatGenerationError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model unavailable")}
	srv := testServer(gen)

	rec := postChat(t, srv, map[string]any{"message": "Hello"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to process chat message", resp["error"])
	assert.Contains(t, resp["details"], "model unavailable")
}

func TestChatClampsHistory(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	srv := testServer(gen)

	history := make([]models.HistoryEntry, 20)
	for i := range history {
		history[i] = models.HistoryEntry{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("turn %d", i),
		}
	}

	rec := postChat(t, srv, map[string]any{
		"message": "Hello",
		"history": history,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.lastHistory, 12)
	assert.Equal(t, "turn 19", gen.lastHistory[11].Content)
	assert.Equal(t, "turn 8", gen.lastHistory[0].Content)
}

func TestHealth(t *testing.T) {
	srv := testServer(&stubGenerator{reply: "x"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "stub-model", resp["model"])
}

func TestStatsReflectRequests(t *testing.T) {
	srv := testServer(&stubGenerator{reply: "pong"})

	rec := postChat(t, srv, map[string]any{"message": "ping"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	statsRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(statsRec, req)

	require.Equal(t, http.StatusOK, statsRec.Code)

	var snap struct {
		UptimeSeconds float64 `json:"uptimeSeconds"`
		ChatRequest   *struct {
			Count int64 `json:"count"`
		} `json:"chatRequest"`
		LLMGenerate *struct {
			Count           int64  `json:"count"`
			TotalInputChars *int64 `json:"totalInputChars"`
		} `json:"llmGenerate"`
	}
	require.NoError(t, json.Unmarshal(statsRec.Body.Bytes(), &snap))

	require.NotNil(t, snap.ChatRequest)
	assert.Equal(t, int64(1), snap.ChatRequest.Count)
	require.NotNil(t, snap.LLMGenerate)
	assert.Equal(t, int64(1), snap.LLMGenerate.Count)
	require.NotNil(t, snap.LLMGenerate.TotalInputChars)
	assert.Equal(t, int64(len("ping")), *snap.LLMGenerate.TotalInputChars)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactlyten", truncate("exactlyten", 10))
	assert.Equal(t, "toolong...", truncate("toolongstring", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
