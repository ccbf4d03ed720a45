package book_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentum-markets/engine/internal/book"
	"github.com/momentum-markets/engine/internal/metrics"
)

// waitForClientGauge polls the client gauge until it reaches want; the
// hub registers and unregisters asynchronously.
func waitForClientGauge(t *testing.T, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(metrics.WebSocketClients) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client gauge never reached %v, at %v",
		want, testutil.ToFloat64(metrics.WebSocketClients))
}

func TestWSHub_TracksConnectedClients(t *testing.T) {
	hub := book.NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	base := testutil.ToFloat64(metrics.WebSocketClients)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	waitForClientGauge(t, base+1)

	// A registered client receives broadcasts.
	hub.Broadcast(book.WSMessage{Type: "bet_processed", EventID: "e1"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("broadcast not delivered: %v", err)
	}
	if !strings.Contains(string(data), "bet_processed") {
		t.Errorf("unexpected broadcast payload: %s", data)
	}

	// Disconnecting unregisters the client and returns the gauge.
	conn.Close()
	waitForClientGauge(t, base)
}
