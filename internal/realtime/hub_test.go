package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"paidqa/internal/money"
	"paidqa/internal/service"
)

func TestHubDeliversToParties(t *testing.T) {
	hub := NewHub()
	asker, cancelAsker := hub.Subscribe(1)
	defer cancelAsker()
	answerer, cancelAnswerer := hub.Subscribe(2)
	defer cancelAnswerer()
	outsider, cancelOutsider := hub.Subscribe(3)
	defer cancelOutsider()

	evt := service.Event{ID: "e1", Type: service.EventQuestionAccepted, QuestionID: 9, AskerID: 1, AnswererID: 2}
	require.NoError(t, hub.Deliver(context.Background(), evt))

	require.Equal(t, "e1", (<-asker).ID)
	require.Equal(t, "e1", (<-answerer).ID)
	select {
	case got := <-outsider:
		t.Fatalf("outsider received %+v", got)
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(1)
	_, cancel2 := hub.Subscribe(1)
	require.Equal(t, 2, hub.Subscribers(1))

	cancel()
	cancel()
	require.Equal(t, 1, hub.Subscribers(1))
	cancel2()
	require.Equal(t, 0, hub.Subscribers(1))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(1)
	defer cancel()

	evt := service.Event{Type: service.EventQuestionPaid, AskerID: 1, AnswererID: 2}
	for i := 0; i < subscriberBuffer; i++ {
		require.NoError(t, hub.Deliver(context.Background(), evt))
	}
	require.Error(t, hub.Deliver(context.Background(), evt))
}

func TestServeUserStreamsEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeUser(w, r, 7)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")

	require.Eventually(t, func() bool { return hub.Subscribers(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	evt := service.Event{
		ID:         "evt-1",
		Type:       service.EventQuestionCreated,
		QuestionID: 42,
		AskerID:    6,
		AnswererID: 7,
		Amount:     money.Amount(3000),
	}
	require.NoError(t, hub.Deliver(ctx, evt))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, "question.created", payload["type"])
	require.Equal(t, "30.00", payload["amount"])
	require.Equal(t, float64(42), payload["question_id"])

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return hub.Subscribers(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeUserChecksOrigin(t *testing.T) {
	hub := NewHub(OriginHosts("https://app.example.com/miniapp")...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeUser(w, r, 7)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	require.Error(t, err)
	require.Equal(t, 0, hub.Subscribers(7))

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://app.example.com"}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")
	require.Eventually(t, func() bool { return hub.Subscribers(7) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginHosts(t *testing.T) {
	require.Equal(t, []string{"app.example.com", "localhost:8080"},
		OriginHosts("https://app.example.com/path", "", "not a url", "http://localhost:8080"))
	require.Empty(t, OriginHosts())
}
