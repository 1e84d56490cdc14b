package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"libraryhub/internal/logging"
	"libraryhub/internal/microservices/http-api/repository"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventConstructors(t *testing.T) {
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	ev := NewFineNotification("u1", "l1", "f1", "Dune", decimal.NewFromInt(15), 3)
	assert.Equal(t, FineNotification, ev.Type)
	assert.Equal(t, "u1", ev.UserID)
	assert.Contains(t, ev.Message, "15.00")
	assert.Contains(t, ev.Message, "3 day(s)")
	assert.Equal(t, "15", ev.Data["amount"])

	assert.Equal(t, LoanReminder, NewLoanReminder("u1", "l1", "Dune", due).Type)
	assert.Equal(t, SeverityWarning, NewOverdueNotification("u1", "l1", "Dune", due).Severity)
	assert.True(t, NewSystemMessage("Maintenance", "tonight").Broadcast())
}

func TestMulti_JoinsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("boom")
	sink := Multi(rec, nil, SinkFunc(func(context.Context, Event) error { return boom }))

	err := sink.Emit(context.Background(), NewSystemMessage("t", "m"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1)
}

func TestDispatcher_DeliversAsync(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, 2, 8, logging.Discard(), nil)
	d.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Emit(context.Background(), NewSystemMessage("t", "m")))
	}
	d.Close()

	assert.Len(t, rec.Events(), 5)
	assert.ErrorIs(t, d.Emit(context.Background(), NewSystemMessage("t", "m")), ErrDispatcherClosed)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	var delivered atomic.Int32
	release := make(chan struct{})
	slow := SinkFunc(func(ctx context.Context, e Event) error {
		<-release
		delivered.Add(1)
		return nil
	})
	d := NewDispatcher(slow, 1, 1, logging.Discard(), nil)
	d.Start()

	// one in flight, one queued, the rest dropped; none may block
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Emit(context.Background(), NewSystemMessage("t", "m")))
	}
	close(release)
	d.Close()

	assert.Less(t, int(delivered.Load()), 10)
	assert.GreaterOrEqual(t, int(delivered.Load()), 1)
}

func TestMemoryReminderQueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryReminderQueue()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, q.Schedule(ctx, base.Add(2*time.Hour), NewSystemMessage("late", "")))
	require.NoError(t, q.Schedule(ctx, base.Add(time.Hour), NewSystemMessage("early", "")))

	due, err := q.Due(ctx, base)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = q.Due(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "early", due[0].Title)
	assert.Equal(t, 1, q.Len())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "library.notifications.u1", Subject(defaultSubjectPrefix, Event{UserID: "u1"}))
	assert.Equal(t, "library.notifications.broadcast", Subject(defaultSubjectPrefix, Event{}))
}

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.Online(userID) }, time.Second, 10*time.Millisecond)
	return conn
}

func TestBroadcaster_StoresAndPushes(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.Discard())
	defer hub.Close()
	repo := repository.NewMemoryNotificationRepository()
	b := NewBroadcaster(hub, repo, logging.Discard())

	conn := dialHub(t, hub, "u1")

	require.NoError(t, b.Emit(ctx, NewReservationReady("u1", "r1", "Dune", time.Now().Add(72*time.Hour))))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"reservation-ready"`)

	inbox, err := repo.GetUnreadByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "reservation-ready", inbox[0].Type)

	// broadcasts are pushed but not stored
	require.NoError(t, b.Emit(ctx, NewSystemMessage("Closing early", "today")))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "system-message")
	inbox, _ = repo.GetUnreadByUser(ctx, "u1")
	assert.Len(t, inbox, 1)
}

func TestHub_OtherUsersDoNotReceive(t *testing.T) {
	hub := NewHub(logging.Discard())
	defer hub.Close()
	conn := dialHub(t, hub, "u2")

	require.NoError(t, hub.Emit(context.Background(), NewReservationExpired("u1", "r1", "Dune")))
	require.NoError(t, hub.Emit(context.Background(), NewReservationExpired("u2", "r2", "Emma")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "r2")
	assert.Equal(t, 1, hub.ConnectionCount())
}
