package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lof_arb_api/models"
)

func TestHubPushesSnapshots(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration runs through the hub loop; wait for it before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, hub.ClientCount())

	snapshot := &models.ResultSet{
		Records: []models.FundRecord{{
			Code:        "501000",
			Name:        "XX LOF基金",
			PremiumRate: 1.25,
		}},
		ComputedAt: time.Now(),
	}
	hub.Publish(snapshot)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type       string              `json:"type"`
		UpdateTime string              `json:"update_time"`
		Count      int                 `json:"count"`
		Data       []models.FundRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, 1, msg.Count)
	assert.NotEmpty(t, msg.UpdateTime)
	require.Len(t, msg.Data, 1)
	assert.Equal(t, "501000", msg.Data[0].Code)
}
