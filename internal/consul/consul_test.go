package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent records the agent API calls the client makes
type fakeAgent struct {
	mu           sync.Mutex
	registered   map[string]any
	deregistered []string
	tokens       []string
	fail         bool
}

func (a *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokens = append(a.tokens, r.Header.Get("X-Consul-Token"))
	if a.fail {
		http.Error(w, "agent unavailable", http.StatusInternalServerError)
		return
	}

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/v1/agent/service/register":
		_ = json.NewDecoder(r.Body).Decode(&a.registered)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		a.deregistered = append(a.deregistered, strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/"))
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestClient(t *testing.T, agent *fakeAgent, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(agent)
	t.Cleanup(srv.Close)

	c, err := NewClient(strings.TrimPrefix(srv.URL, "http://"), token)
	require.NoError(t, err)
	return c
}

func TestNewServiceConfig(t *testing.T) {
	cfg := NewServiceConfig("users-service", "10.0.0.5", 8080)

	assert.Equal(t, "users-service-10.0.0.5-8080", cfg.ID)
	assert.Equal(t, "http://10.0.0.5:8080/health", cfg.Check.HTTP)
	assert.Equal(t, "10s", cfg.Check.Interval)
}

func TestRegisterAndDeregister(t *testing.T) {
	agent := &fakeAgent{}
	c := newTestClient(t, agent, "secret-token")
	cfg := NewServiceConfig("users-service", "localhost", 8080)

	require.NoError(t, c.Register(cfg))
	require.NoError(t, c.Deregister(cfg.ID))

	agent.mu.Lock()
	defer agent.mu.Unlock()

	assert.Equal(t, "users-service", agent.registered["Name"])
	assert.Equal(t, cfg.ID, agent.registered["ID"])
	check, ok := agent.registered["Check"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080/health", check["HTTP"])

	assert.Equal(t, []string{cfg.ID}, agent.deregistered)
	for _, tok := range agent.tokens {
		assert.Equal(t, "secret-token", tok)
	}
}

func TestRegister_AgentError(t *testing.T) {
	agent := &fakeAgent{fail: true}
	c := newTestClient(t, agent, "")

	err := c.Register(NewServiceConfig("users-service", "localhost", 8080))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register service")

	assert.Error(t, c.Deregister("x"))
}
