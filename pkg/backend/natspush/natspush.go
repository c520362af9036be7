// Package natspush delivers lobby status changes over NATS. The backend side
// publishes, the kiosk side subscribes. The last status per lobby is kept in
// a JetStream key value bucket so late subscribers catch up.
package natspush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/backend"
	"github.com/mpapenbr/simkiosk/pkg/model"
)

const bucket = "kiosk_lobbies"

type (
	// Feed publishes and receives lobby status notifications.
	Feed struct {
		ctx   context.Context
		conn  *nats.Conn
		kv    jetstream.KeyValue
		l     *log.Logger
		mutex sync.Mutex
		subs  map[*nats.Subscription]struct{}
	}
	Option func(*Feed)

	statusMsg struct {
		LobbyID string            `json:"lobbyId"`
		Status  model.LobbyStatus `json:"status"`
	}
)

var _ backend.LobbyFeed = (*Feed)(nil)

func Subject(lobbyID string) string {
	return fmt.Sprintf("kiosk.lobby.%s.status", lobbyID)
}

func NewFeed(conn *nats.Conn, opts ...Option) (*Feed, error) {
	ret := &Feed{
		ctx:  context.Background(),
		conn: conn,
		l:    log.Default().Named("nats"),
		subs: make(map[*nats.Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.setupKV(); err != nil {
		return nil, err
	}
	return ret, nil
}

func WithContext(ctx context.Context) Option {
	return func(f *Feed) {
		f.ctx = ctx
	}
}

func WithLogger(l *log.Logger) Option {
	return func(f *Feed) {
		f.l = l
	}
}

func (f *Feed) setupKV() error {
	js, err := jetstream.New(f.conn)
	if err != nil {
		return err
	}
	f.kv, err = js.CreateOrUpdateKeyValue(f.ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    time.Hour * 6,
	})
	return err
}

// Close drops all subscriptions. The connection is owned by the caller.
func (f *Feed) Close() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for sub := range f.subs {
		//nolint:errcheck // shutting down
		sub.Unsubscribe()
	}
	clear(f.subs)
}

func (f *Feed) PublishLobbyStatus(lobbyID string, status model.LobbyStatus) error {
	data, err := json.Marshal(statusMsg{LobbyID: lobbyID, Status: status})
	if err != nil {
		return err
	}
	if _, err = f.kv.Put(f.ctx, lobbyID, data); err != nil {
		f.l.Warn("could not store lobby status", log.String("lobby", lobbyID), log.ErrorField(err))
	}
	return f.conn.Publish(Subject(lobbyID), data)
}

// Notifier adapts PublishLobbyStatus to the simulated backend hook.
func (f *Feed) Notifier() func(lobbyID string, status model.LobbyStatus) {
	return func(lobbyID string, status model.LobbyStatus) {
		if err := f.PublishLobbyStatus(lobbyID, status); err != nil {
			f.l.Error("could not publish lobby status",
				log.String("lobby", lobbyID), log.ErrorField(err))
		}
	}
}

// SubscribeLobby calls fn for every status change of the lobby. A status
// already stored for the lobby is delivered right away.
//
//nolint:whitespace // can't make both editor and linter happy
func (f *Feed) SubscribeLobby(
	lobbyID string, fn func(model.LobbyStatus),
) (func(), error) {
	sub, err := f.conn.Subscribe(Subject(lobbyID), func(msg *nats.Msg) {
		if s, ok := f.decode(msg.Data); ok {
			fn(s)
		}
	})
	if err != nil {
		return nil, err
	}
	f.mutex.Lock()
	f.subs[sub] = struct{}{}
	f.mutex.Unlock()

	if kve, err := f.kv.Get(f.ctx, lobbyID); err == nil {
		if s, ok := f.decode(kve.Value()); ok {
			fn(s)
		}
	} else if !errors.Is(err, jetstream.ErrKeyNotFound) {
		f.l.Warn("could not read lobby status", log.String("lobby", lobbyID), log.ErrorField(err))
	}

	return func() {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		if _, ok := f.subs[sub]; ok {
			//nolint:errcheck // nothing to do about it
			sub.Unsubscribe()
			delete(f.subs, sub)
		}
	}, nil
}

func (f *Feed) decode(data []byte) (model.LobbyStatus, bool) {
	var msg statusMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		f.l.Warn("invalid lobby status message", log.ErrorField(err))
		return "", false
	}
	return msg.Status, true
}
