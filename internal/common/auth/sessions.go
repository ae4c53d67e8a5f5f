package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"recruit-portal/internal/common/database"
	"recruit-portal/internal/models"
)

const (
	sessionKeyPrefix     = "session:"
	sessionChannelPrefix = "session-events:"
)

// SessionStore keeps session records in Redis and fans session changes out
// over pub/sub.
type SessionStore struct {
	redis *database.RedisClient
}

func NewSessionStore(rc *database.RedisClient) *SessionStore {
	return &SessionStore{redis: rc}
}

// Save stores s until its expiry.
func (s *SessionStore) Save(ctx context.Context, sess *models.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKeyPrefix+sess.ID, data, ttl)
}

// Load returns the session or false when it does not exist.
func (s *SessionStore) Load(ctx context.Context, id string) (*models.Session, bool, error) {
	data, ok, err := s.redis.Get(ctx, sessionKeyPrefix+id)
	if err != nil || !ok {
		return nil, false, err
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, sessionKeyPrefix+id)
}

func (s *SessionStore) Publish(ctx context.Context, ev models.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.redis.Publish(ctx, sessionChannelPrefix+ev.SessionID, data)
}

// Watch delivers the events published for one session until stop is called.
// Undecodable messages are skipped.
func (s *SessionStore) Watch(ctx context.Context, id string) (<-chan models.SessionEvent, func(), error) {
	ps, err := s.redis.Subscribe(ctx, sessionChannelPrefix+id)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan models.SessionEvent, 4)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			ps.Close()
		})
	}
	return out, stop, nil
}
