package wsstream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(Snapshot{InFlight: 2, QueueDepth: 1, UsedPorts: []int{6090, 6091}})

	var got Snapshot
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, 2, got.InFlight)
	require.Equal(t, 1, got.QueueDepth)
	require.ElementsMatch(t, []int{6090, 6091}, got.UsedPorts)
}
