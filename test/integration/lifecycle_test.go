//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtal-lab/xtal/internal/document/api"
)

// TestCoreAPI_TabLifecycle walks the document lifecycle an editor drives:
// open tabs, switch between them, close them, and check that exactly one stays active.
func TestCoreAPI_TabLifecycle(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	require.NoError(t, resetDatabase(t, h.db))

	ids := make([]string, 3)
	for i, name := range []string{"one", "two", "three"} {
		status, body := sendJSON(t, h.client, http.MethodPost, h.baseURL+"/v1/documents", api.CreateDocumentRequest{Name: name})
		require.Equal(t, http.StatusCreated, status, string(body))
		var doc api.DocumentResponse
		require.NoError(t, json.Unmarshal(body, &doc))
		ids[i] = doc.ID
	}
	requireActive(t, h, ids[2])

	status, body := sendJSON(t, h.client, http.MethodPost, h.baseURL+"/v1/documents/"+ids[1]+"/activate", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	requireActive(t, h, ids[1])

	// Closing the active middle tab hands the marker to its right neighbour.
	status, body = sendJSON(t, h.client, http.MethodDelete, h.baseURL+"/v1/documents/"+ids[1], nil)
	require.Equal(t, http.StatusNoContent, status, string(body))
	requireActive(t, h, ids[2])

	// Closing the active last tab hands it to the left neighbour.
	status, body = sendJSON(t, h.client, http.MethodDelete, h.baseURL+"/v1/documents/"+ids[2], nil)
	require.Equal(t, http.StatusNoContent, status, string(body))
	requireActive(t, h, ids[0])

	status, body = sendJSON(t, h.client, http.MethodPut, h.baseURL+"/v1/documents/"+ids[0], map[string]string{"name": "renamed"})
	require.Equal(t, http.StatusOK, status, string(body))
	require.Equal(t, "renamed", getDocument(t, h, ids[0]).Name)
}

func requireActive(t *testing.T, h *integrationHarness, want string) {
	t.Helper()

	resp, err := h.client.Get(h.baseURL + "/v1/documents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var docs []api.DocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))

	var active []string
	for _, d := range docs {
		if d.Active {
			active = append(active, d.ID)
		}
	}
	require.Equal(t, []string{want}, active)
}
