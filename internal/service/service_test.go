package service

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/realtime"
	"MedChat/internal/repository"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	extA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	ext5 = uuid.MustParse("55555555-5555-4555-8555-555555555555")
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.ChatMessage{}, &model.Doctor{}))
	return db
}

type fixture struct {
	db       *gorm.DB
	resolver *identity.Resolver
	store    *PersistentStore
	hub      *realtime.Hub
	chat     ChatService
	threads  ConversationService
}

// newFixture Legacy(5) 与 External(ext5) 为同一人
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	resolver := identity.NewResolver(identity.StaticMapping{5: ext5}, 0)
	store := NewPersistentStore(repository.NewMessageRepo(db), resolver, nil, 200)
	hub := realtime.NewHub("test", resolver, 64)
	t.Cleanup(func() { hub.Shutdown(context.Background()) })
	return &fixture{
		db:       db,
		resolver: resolver,
		store:    store,
		hub:      hub,
		chat:     NewChatService(store, hub, resolver, nil),
		threads:  NewConversationService(store, resolver),
	}
}

type fakeConn struct {
	id   string
	user identity.UserID

	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func newFakeConn(user identity.UserID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), user: user}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) User() identity.UserID { return c.user }

func (c *fakeConn) LastActive() time.Time { return time.Now() }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return realtime.ErrConnClosed
	}
	if c.fail {
		return realtime.ErrSendBufferFull
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) events(name string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res []json.RawMessage
	for _, raw := range c.frames {
		f, err := realtime.Decode(raw)
		if err == nil && f.Event == name {
			res = append(res, f.Data)
		}
	}
	return res
}

func session(u identity.UserID) *Session {
	return &Session{User: u}
}
