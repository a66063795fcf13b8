package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

func TestN8NWebhookPostSendsPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"received": true})
	}))
	defer srv.Close()

	n := &N8NWebhook{Client: srv.Client()}
	res := n.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{
			"webhook_url": srv.URL,
			"payload":     map[string]any{"event": "done"},
		},
	})

	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, 200, res.Outputs["status_code"])
	require.Equal(t, map[string]any{"event": "done"}, received)
	require.Equal(t, map[string]any{"received": true}, res.Outputs["response"])
}

func TestN8NWebhookGetSkipsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &N8NWebhook{Client: srv.Client()}
	res := n.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{
			"webhook_url": srv.URL,
			"method":      "GET",
			"payload":     map[string]any{"ignored": true},
		},
	})

	require.Equal(t, skill.StatusSuccess, res.Status)
}

func TestDatabaseOperatorSimulatesSelect(t *testing.T) {
	d := &DatabaseOperator{}
	res := d.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{
			"connection_string": "sqlite:///tmp/test.db",
			"query":             "select * from runs",
		},
	})

	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, 1, res.Outputs["row_count"])
	rows := res.Outputs["rows"].([]any)
	require.Len(t, rows, 1)
}

func TestDatabaseOperatorSimulatesWrite(t *testing.T) {
	d := &DatabaseOperator{}
	res := d.Execute(context.Background(), &skill.Context{
		NodeID: "node_1",
		Inputs: map[string]any{
			"connection_string": "sqlite:///tmp/test.db",
			"query":             "INSERT INTO runs VALUES (1)",
		},
	})

	require.Equal(t, skill.StatusSuccess, res.Status)
	require.Equal(t, 1, res.Outputs["row_count"])
	require.Nil(t, res.Outputs["rows"])
}
