package wsfeed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
	"github.com/exiort/mas-market-laboratory/internal/views"
)

func TestFeed_PublishesToConnectedSubscriber(t *testing.T) {
	feed := New(nil)
	server := httptest.NewServer(feed)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return feed.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	md := views.MarketData(&types.MarketData{MacroTick: 1, MicroTick: 2}, money.Scale(100))
	feed.PublishMarketData(md)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), `"type":"market_data"`)
}

func TestFeed_DropsDisconnectedSubscriber(t *testing.T) {
	feed := New(nil)
	server := httptest.NewServer(feed)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return feed.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return feed.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}
