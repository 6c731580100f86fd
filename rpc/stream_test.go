package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"lmstaker/native/staker"
)

func TestEventStreamBacklogAndCursor(t *testing.T) {
	stream := NewEventStream()
	stream.Emit(staker.RewardAdded{Reward: 1})
	stream.Emit(staker.RewardAdded{Reward: 2})
	stream.Emit(staker.RewardAdded{Reward: 3})

	_, cancel, backlog := stream.Subscribe(context.Background(), "1")
	defer cancel()
	require.Len(t, backlog, 2)
	require.Equal(t, "2", backlog[0].Cursor)
	require.Equal(t, "3", backlog[1].Attributes["reward"])
}

func TestEventStreamDeliversLiveAndCancels(t *testing.T) {
	stream := NewEventStream()
	ctx, stop := context.WithCancel(context.Background())
	updates, _, backlog := stream.Subscribe(ctx, "")
	require.Empty(t, backlog)
	require.Equal(t, 1, stream.Subscribers())

	stream.Emit(staker.StakeOpened{Liquidity: 10})
	select {
	case update := <-updates:
		require.Equal(t, staker.EventTypeStakeOpened, update.Type)
		require.Equal(t, "10", update.Attributes["liquidity"])
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}

	stop()
	require.Eventually(t, func() bool { return stream.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-updates
	require.False(t, open)
}

func TestEventStreamDropsForSlowSubscribers(t *testing.T) {
	stream := NewEventStream()
	_, cancel, _ := stream.Subscribe(context.Background(), "")
	defer cancel()
	for i := 0; i < subscriberBuffer+5; i++ {
		stream.Emit(staker.RewardClaimed{Reward: uint64(i)})
	}
	require.Equal(t, uint64(5), stream.Dropped())
}

func TestStreamHandlerOverWebsocket(t *testing.T) {
	stream := NewEventStream()
	stream.Emit(staker.RewardAdded{Reward: 5})
	stream.Emit(staker.StakeOpened{Liquidity: 10})

	srv := httptest.NewServer(NewStreamHandler(stream, nil, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?type=" + staker.EventTypeRewardAdded
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() StreamUpdate {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var update StreamUpdate
		require.NoError(t, json.Unmarshal(data, &update))
		return update
	}

	first := read()
	require.Equal(t, staker.EventTypeRewardAdded, first.Type)
	require.Equal(t, "5", first.Attributes["reward"])

	stream.Emit(staker.StakeOpened{Liquidity: 1})
	stream.Emit(staker.RewardAdded{Reward: 9})
	second := read()
	require.Equal(t, "9", second.Attributes["reward"])
	require.Equal(t, "4", second.Cursor)
}
