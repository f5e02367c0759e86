package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClassifier(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
			"usage":   map[string]any{"prompt_tokens": 100, "completion_tokens": 5, "total_tokens": 105},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func baseEnv(t *testing.T, classifierURL string) {
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("GROQ_API_URL", classifierURL)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("AMQP_URL", "")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("PORT", "8080")
}

func TestAsk_Help(t *testing.T) {
	baseEnv(t, fakeClassifier(t, `{"intent":"help"}`).URL)

	out, err := run(t, "ask", "what", "can", "you", "do")
	require.NoError(t, err)
	assert.Contains(t, out, "I can track your expenses.")
}

func TestAsk_GreetingSkipsClassifier(t *testing.T) {
	baseEnv(t, "http://127.0.0.1:1")

	out, err := run(t, "ask", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi! How can I help you track your expenses today?")
}

func TestAsk_InvalidConfig(t *testing.T) {
	baseEnv(t, "http://127.0.0.1:1")
	t.Setenv("STORAGE_BACKEND", "mongo")

	_, err := run(t, "ask", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage backend 'mongo'")
}

func TestMigrate(t *testing.T) {
	baseEnv(t, "http://127.0.0.1:1")
	db := filepath.Join(t.TempDir(), "nested", "expenses.db")

	out, err := run(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	_, statErr := os.Stat(db)
	assert.NoError(t, statErr)
}
