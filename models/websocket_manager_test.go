package models

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketManagerBroadcastsJobUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsm := NewWebSocketManager(logger.NewNop())
	wsm.Start(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		wsm.RegisterClient(conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return wsm.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	job := NewJob("job-9", KindProduct, []string{"http://shop"}, now)
	require.NoError(t, job.Abort("unsupported website", now))
	wsm.BroadcastJobUpdate(job)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var update JobUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	assert.Equal(t, "job_update", update.Type)
	assert.Equal(t, "job-9", update.JobID)
	assert.Equal(t, StatusFailed, update.Status)
	assert.Equal(t, "unsupported website", update.Error)
}
