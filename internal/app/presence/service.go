package presence

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"livechat/internal/app/eventbus"
	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/keyedlock"
	"livechat/internal/pkg/logx"
)

// LiveUsersEvent is the payload published on the liveUserInChatroom topic.
type LiveUsersEvent struct {
	ChatroomID int64       `json:"chatroomId"`
	LiveUsers  []user.User `json:"liveUsers"`
}

// Service implements enter and leave. Calls for the same chatroom are serialized, and the
// snapshot published after a mutation is read while that chatroom is still locked, so
// subscribers never receive a list older than the change that triggered it.
//
// The default lock covers one process. Deployments sharing a Redis store across instances
// must install a shared locker with WithLocker.
type Service struct {
	store  Store
	bus    eventbus.Bus
	locks  keyedlock.Locker
	logger zerolog.Logger
}

// NewService returns a Service over store publishing on bus.
func NewService(store Store, bus eventbus.Bus) *Service {
	return &Service{
		store:  store,
		bus:    bus,
		locks:  keyedlock.NewLocal(),
		logger: logx.Component("PresenceService"),
	}
}

// WithLocker replaces the per-chatroom lock and returns s.
func (s *Service) WithLocker(locks keyedlock.Locker) *Service {
	s.locks = locks
	return s
}

func (s *Service) lock(ctx context.Context, chatroomID int64) (func(), error) {
	unlock, err := s.locks.Lock(ctx, "presence:"+strconv.FormatInt(chatroomID, 10))
	if err != nil {
		return nil, errs.Upstream(errs.ErrPresenceFailed, err, "Failed to lock chatroom presence", "chatroom_id", chatroomID)
	}
	return unlock, nil
}

// Enter marks u live in the chatroom and returns the updated live-user list.
// Entering twice leaves a single entry.
func (s *Service) Enter(ctx context.Context, chatroomID int64, u user.User) ([]user.User, error) {
	unlock, err := s.lock(ctx, chatroomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.store.Add(ctx, chatroomID, u); err != nil {
		return nil, errs.Upstream(errs.ErrPresenceFailed, err, "Failed to enter chatroom", "chatroom_id", chatroomID, "user_id", u.ID)
	}

	live, err := s.snapshot(ctx, chatroomID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int64("chatroom_id", chatroomID).Int64("user_id", u.ID).Int("live", len(live)).Msg("User entered chatroom.")
	return live, nil
}

// Leave removes u from the chatroom's live users. Leaving when absent is a no-op,
// but the current list is still announced.
func (s *Service) Leave(ctx context.Context, chatroomID int64, u user.User) error {
	unlock, err := s.lock(ctx, chatroomID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Remove(ctx, chatroomID, u.ID); err != nil {
		return errs.Upstream(errs.ErrPresenceFailed, err, "Failed to leave chatroom", "chatroom_id", chatroomID, "user_id", u.ID)
	}

	live, err := s.snapshot(ctx, chatroomID)
	if err != nil {
		return err
	}

	s.logger.Debug().Int64("chatroom_id", chatroomID).Int64("user_id", u.ID).Int("live", len(live)).Msg("User left chatroom.")
	return nil
}

// LiveUsers returns the chatroom's current live users, for clients resynchronizing
// after a missed notification.
func (s *Service) LiveUsers(ctx context.Context, chatroomID int64) ([]user.User, error) {
	live, err := s.store.List(ctx, chatroomID)
	if err != nil {
		return nil, errs.Upstream(errs.ErrPresenceFailed, err, "Failed to list live users", "chatroom_id", chatroomID)
	}
	return live, nil
}

// snapshot reads the live list and publishes it. The caller holds the chatroom's lock.
func (s *Service) snapshot(ctx context.Context, chatroomID int64) ([]user.User, error) {
	live, err := s.store.List(ctx, chatroomID)
	if err != nil {
		return nil, errs.Upstream(errs.ErrPresenceFailed, err, "Failed to read live users", "chatroom_id", chatroomID)
	}

	eventbus.Notify(context.WithoutCancel(ctx), s.bus, eventbus.Topic(eventbus.ClassLiveUsers, chatroomID), LiveUsersEvent{
		ChatroomID: chatroomID,
		LiveUsers:  live,
	})
	return live, nil
}
