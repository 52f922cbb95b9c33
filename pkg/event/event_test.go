package event

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_OnAndUnsubscribe(t *testing.T) {
	e := NewEmitter()
	var first, second int
	off1 := e.On(ConversationChanged, func(Event) { first++ })
	e.On(ConversationChanged, func(Event) { second++ })

	e.Emit(ConversationChangedEvent{ConversationID: "c1"})
	off1()
	e.Emit(ConversationChangedEvent{ConversationID: "c1"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestEmitter_OnAnyReceivesEverything(t *testing.T) {
	e := NewEmitter()
	var names []string
	off := e.OnAny(func(ev Event) { names = append(names, ev.EventName()) })

	e.Emit(ConversationDeletedEvent{ConversationID: "c1"})
	e.Emit(BranchStatusEvent{ModelID: "m1", Status: "completed"})
	off()
	e.Emit(ConfigChangedEvent{})

	assert.Equal(t, []string{ConversationDeleted, BranchStatus}, names)
}

func TestNewNotification_UsesJSONNames(t *testing.T) {
	n, err := newNotification(BranchStatusEvent{ConversationID: "c1", ModelID: "m1", Status: "failed", Error: "boom"},
		time.UnixMilli(1234))
	require.NoError(t, err)
	assert.Equal(t, BranchStatus, n.Event)
	assert.Equal(t, int64(1234), n.TS)
	assert.JSONEq(t, `{"conversationId":"c1","modelId":"m1","status":"failed","error":"boom"}`, string(n.Data))
}

func TestParseSubscription(t *testing.T) {
	sub, err := ParseSubscription(url.Values{
		"events":         {"branch.status, conversation.changed,"},
		"conversationId": {" c1 "},
		"tabId":          {"7"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{BranchStatus: true, ConversationChanged: true}, sub.Names)
	assert.Equal(t, "c1", sub.ConversationID)
	assert.True(t, sub.ByTab)
	assert.Equal(t, 7, sub.TabID)

	sub, err = ParseSubscription(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, sub.Names)
	assert.False(t, sub.ByTab)

	_, err = ParseSubscription(url.Values{"tabId": {"seven"}})
	assert.Error(t, err)
}

func TestSubscription_Matches(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		ev   Event
		want bool
	}{
		{"empty matches all", Subscription{}, ConfigChangedEvent{}, true},
		{"name filter", Subscription{Names: map[string]bool{BranchStatus: true}}, ConversationChangedEvent{ConversationID: "c1"}, false},
		{"same conversation", Subscription{ConversationID: "c1"}, BranchStatusEvent{ConversationID: "c1"}, true},
		{"other conversation", Subscription{ConversationID: "c1"}, BranchStatusEvent{ConversationID: "c2"}, false},
		{"deleted other conversation", Subscription{ConversationID: "c1"}, ConversationDeletedEvent{ConversationID: "c2"}, false},
		{"unscoped passes conversation filter", Subscription{ConversationID: "c1"}, SyncCompletedEvent{}, true},
		{"same tab", Subscription{TabID: 3, ByTab: true}, PageStateChangedEvent{TabID: 3}, true},
		{"other tab", Subscription{TabID: 3, ByTab: true}, PageStateChangedEvent{TabID: 4}, false},
		{"tab zero", Subscription{TabID: 0, ByTab: true}, PageStateChangedEvent{TabID: 4}, false},
		{"unscoped passes tab filter", Subscription{TabID: 3, ByTab: true}, ConversationChangedEvent{ConversationID: "c1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.Matches(tt.ev))
		})
	}
}

func dialEvents(t *testing.T, e *Emitter, query string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", NewWSHandler(e, nil).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The handler subscribes after the upgrade completes.
	require.Eventually(t, func() bool {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return len(e.allListeners) == 1
	}, 3*time.Second, 10*time.Millisecond)
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) (Notification, map[string]any) {
	t.Helper()
	var n Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&n))
	var data map[string]any
	require.NoError(t, json.Unmarshal(n.Data, &data))
	return n, data
}

func TestWSHandler_DeliversFilteredEvents(t *testing.T) {
	e := NewEmitter()
	conn := dialEvents(t, e, "events="+ConversationChanged)

	e.Emit(ConfigChangedEvent{})
	e.Emit(ConversationChangedEvent{ConversationID: "c9"})

	n, data := readNotification(t, conn)
	assert.Equal(t, ConversationChanged, n.Event)
	assert.Equal(t, "c9", data["conversationId"])
}

func TestWSHandler_ScopesToConversation(t *testing.T) {
	e := NewEmitter()
	conn := dialEvents(t, e, "events="+BranchStatus+","+ConversationChanged+"&conversationId=c2")

	e.Emit(BranchStatusEvent{ConversationID: "c1", ModelID: "m1", Status: "streaming"})
	e.Emit(ConversationChangedEvent{ConversationID: "c1"})
	e.Emit(BranchStatusEvent{ConversationID: "c2", ModelID: "m2", Status: "completed"})

	n, data := readNotification(t, conn)
	assert.Equal(t, BranchStatus, n.Event)
	assert.Equal(t, "c2", data["conversationId"])
	assert.Equal(t, "m2", data["modelId"])
}

func TestWSHandler_ScopesToTab(t *testing.T) {
	e := NewEmitter()
	conn := dialEvents(t, e, "tabId=7")

	e.Emit(PageStateChangedEvent{TabID: 3})
	e.Emit(PageStateChangedEvent{TabID: 7})

	n, data := readNotification(t, conn)
	assert.Equal(t, PageStateChanged, n.Event)
	assert.Equal(t, float64(7), data["tabId"])
}

func TestWSHandler_RejectsInvalidTab(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", NewWSHandler(NewEmitter(), nil).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?tabId=x", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
