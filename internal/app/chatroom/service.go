package chatroom

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"livechat/internal/app/eventbus"
	"livechat/internal/app/storage"
	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/keyedlock"
	"livechat/internal/pkg/logx"
)

const (
	// MaxNameLength is the maximum chatroom name length in runes.
	MaxNameLength = 64

	// MaxContentBytes is the maximum message text length in bytes.
	MaxContentBytes = 5000
)

// SendMessageInput carries a message to post. Image is optional.
type SendMessageInput struct {
	ChatroomID int64
	AuthorID   int64
	Content    string
	Image      *storage.Upload
}

// Service implements chatroom and message operations.
// Messages of one chatroom are persisted and published under that chatroom's lock, so
// subscribers see them in commit order.
type Service struct {
	store  Store
	blobs  storage.BlobStore
	bus    eventbus.Bus
	locks  keyedlock.Locker
	logger zerolog.Logger
}

// NewService returns a Service persisting through store, storing images in blobs
// and announcing new messages on bus.
func NewService(store Store, blobs storage.BlobStore, bus eventbus.Bus) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		bus:    bus,
		locks:  keyedlock.NewLocal(),
		logger: logx.Component("ChatroomService"),
	}
}

// WithLocker replaces the per-chatroom message lock and returns s.
// Instances sharing a database and a Redis bus need a shared locker.
func (s *Service) WithLocker(locks keyedlock.Locker) *Service {
	s.locks = locks
	return s
}

// CreateChatroom creates a chatroom named name with creatorID as its only member and
// returns it with its members. A name already in use, compared exactly and case-sensitively,
// is a conflict. Names are never rewritten, so surrounding whitespace is rejected.
func (s *Service) CreateChatroom(ctx context.Context, name string, creatorID int64) (*Chatroom, error) {
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, errs.NewError(errs.ErrChatroomNameInvalid).WithField("name", "must be between 1 and 64 characters")
	}
	if strings.TrimSpace(name) != name {
		return nil, errs.NewError(errs.ErrChatroomNameInvalid).WithField("name", "must not start or end with whitespace")
	}

	if _, err := s.store.FindChatroomByName(ctx, name); err == nil {
		return nil, nameTaken()
	} else if !errors.Is(err, ErrNotFound) {
		return nil, errs.Upstream(errs.ErrStorageFailed, err, "Failed to look up chatroom name", "name", name)
	}

	room, err := s.store.CreateChatroom(ctx, name, creatorID)
	if err != nil {
		return nil, s.storeError(err, "Failed to create chatroom")
	}

	s.logger.Info().Int64("chatroom_id", room.ID).Int64("creator_id", creatorID).Msg("Chatroom created.")
	return s.GetChatroom(ctx, room.ID, ExpandUsers)
}

// AddUsersToChatroom adds userIDs as members and returns the chatroom with its members.
// Ids that are already members are skipped.
func (s *Service) AddUsersToChatroom(ctx context.Context, chatroomID int64, userIDs []int64) (*Chatroom, error) {
	if len(userIDs) == 0 {
		return nil, errs.NewError(errs.ErrInvalidParams).WithField("userIds", "must not be empty")
	}
	for _, id := range userIDs {
		if id <= 0 {
			return nil, errs.NewError(errs.ErrInvalidParams).WithField("userIds", "must contain positive integers")
		}
	}

	if err := s.store.AddMembers(ctx, chatroomID, dedupe(userIDs)); err != nil {
		return nil, s.storeError(err, "Failed to add chatroom members", "chatroom_id", chatroomID)
	}

	return s.GetChatroom(ctx, chatroomID, ExpandUsers)
}

// DeleteChatroom removes the chatroom with its memberships and messages. It cannot be undone.
func (s *Service) DeleteChatroom(ctx context.Context, chatroomID int64) error {
	if err := s.store.DeleteChatroom(ctx, chatroomID); err != nil {
		return s.storeError(err, "Failed to delete chatroom", "chatroom_id", chatroomID)
	}

	s.logger.Info().Int64("chatroom_id", chatroomID).Msg("Chatroom deleted.")
	return nil
}

// SendMessage persists a message and then announces it on the chatroom's newMessage topic.
// Nothing is published unless persistence succeeded. The commit and the publish happen
// under the chatroom's lock.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*Message, error) {
	if len(in.Content) > MaxContentBytes {
		return nil, errs.NewError(errs.ErrMessageContentTooLong).WithField("content", "must be at most 5000 bytes")
	}
	if strings.TrimSpace(in.Content) == "" && in.Image == nil {
		return nil, errs.NewError(errs.ErrMessageEmpty).WithField("content", "must not be empty without an image")
	}

	var imageURL, imageKey string
	if in.Image != nil {
		var err error
		if imageKey, err = s.saveImage(ctx, *in.Image); err != nil {
			return nil, err
		}
		imageURL = s.blobs.URL(imageKey)
	}

	unlock, err := s.locks.Lock(ctx, "messages:"+strconv.FormatInt(in.ChatroomID, 10))
	if err != nil {
		if imageKey != "" {
			s.deleteBlobAsync(imageKey)
		}
		return nil, errs.Upstream(errs.ErrStorageFailed, err, "Failed to lock chatroom messages", "chatroom_id", in.ChatroomID)
	}
	defer unlock()

	msg, err := s.store.CreateMessage(ctx, NewMessage{
		ChatroomID: in.ChatroomID,
		AuthorID:   in.AuthorID,
		Content:    in.Content,
		ImageURL:   imageURL,
	})
	if err != nil {
		if imageKey != "" {
			s.deleteBlobAsync(imageKey)
		}
		return nil, s.storeError(err, "Failed to persist message", "chatroom_id", in.ChatroomID)
	}

	eventbus.Notify(context.WithoutCancel(ctx), s.bus, eventbus.Topic(eventbus.ClassNewMessage, msg.ChatroomID), NewMessageEvent{
		ChatroomID: msg.ChatroomID,
		Message:    *msg,
	})

	return msg, nil
}

// SaveImage validates and stores an image, returning its public URL.
func (s *Service) SaveImage(ctx context.Context, up storage.Upload) (string, error) {
	key, err := s.saveImage(ctx, up)
	if err != nil {
		return "", err
	}
	return s.blobs.URL(key), nil
}

// GetChatroom returns the chatroom with the requested relations.
func (s *Service) GetChatroom(ctx context.Context, chatroomID int64, expand Expand) (*Chatroom, error) {
	room, err := s.store.FindChatroom(ctx, chatroomID, expand)
	if err != nil {
		return nil, s.storeError(err, "Failed to load chatroom", "chatroom_id", chatroomID)
	}
	return room, nil
}

// GetChatroomsForUser returns the chatrooms userID belongs to, each with its members and messages.
func (s *Service) GetChatroomsForUser(ctx context.Context, userID int64) ([]Chatroom, error) {
	rooms, err := s.store.ListChatroomsForUser(ctx, userID, ExpandUsers|ExpandMessages)
	if err != nil {
		return nil, s.storeError(err, "Failed to list chatrooms", "user_id", userID)
	}
	return rooms, nil
}

// GetMessagesForChatroom returns the chatroom's messages, oldest first.
func (s *Service) GetMessagesForChatroom(ctx context.Context, chatroomID int64) ([]Message, error) {
	messages, err := s.store.ListMessages(ctx, chatroomID)
	if err != nil {
		return nil, s.storeError(err, "Failed to list messages", "chatroom_id", chatroomID)
	}
	return messages, nil
}

// GetUsersOfChatroom returns the chatroom's members.
func (s *Service) GetUsersOfChatroom(ctx context.Context, chatroomID int64) ([]user.User, error) {
	members, err := s.store.ListMembers(ctx, chatroomID)
	if err != nil {
		return nil, s.storeError(err, "Failed to list members", "chatroom_id", chatroomID)
	}
	return members, nil
}

// saveImage validates up before writing it and returns the stored key.
func (s *Service) saveImage(ctx context.Context, up storage.Upload) (string, error) {
	if err := storage.ValidateImage(up); err != nil {
		return "", err
	}

	key, err := s.blobs.Put(ctx, up)
	if err != nil {
		if customErr, ok := errs.As(err); ok {
			return "", customErr
		}
		return "", errs.Upstream(errs.ErrFileStorageFailed, err, "Failed to store image", "name", up.Name)
	}
	return key, nil
}

// storeError maps Store sentinel errors onto the client-facing taxonomy.
func (s *Service) storeError(err error, msg string, fields ...any) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errs.NewError(errs.ErrChatroomNotFound)
	case errors.Is(err, ErrDuplicateName):
		return nameTaken()
	case errors.Is(err, ErrUnknownUser):
		return errs.NewError(errs.ErrUserNotFound)
	}
	return errs.Upstream(errs.ErrStorageFailed, err, msg, fields...)
}

func (s *Service) deleteBlobAsync(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete orphaned image")
		}
	}()
}

func nameTaken() *errs.CustomError {
	return errs.NewError(errs.ErrChatroomNameExists).WithField("name", "chatroom name already exists")
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
