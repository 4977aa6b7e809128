package user

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"livechat/internal/app/storage"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
)

// MaxFullnameLength is the maximum profile name length in runes.
const MaxFullnameLength = 100

// Service implements user lookups and profile updates.
type Service struct {
	store  Store
	blobs  storage.BlobStore
	logger zerolog.Logger
}

// NewService returns a Service backed by store and blobs.
func NewService(store Store, blobs storage.BlobStore) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logx.Component("UserService"),
	}
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.FindUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errs.NewError(errs.ErrUserNotFound)
		}
		return nil, errs.Upstream(errs.ErrStorageFailed, err, "Failed to load user", "user_id", id)
	}
	return u, nil
}

// SearchUsers returns users whose full name contains fullname, excluding the caller.
func (s *Service) SearchUsers(ctx context.Context, fullname string, callerID int64) ([]User, error) {
	fullname = strings.TrimSpace(fullname)
	if fullname == "" {
		return []User{}, nil
	}

	users, err := s.store.SearchUsers(ctx, fullname, callerID)
	if err != nil {
		return nil, errs.Upstream(errs.ErrStorageFailed, err, "Failed to search users")
	}
	return users, nil
}

// UpdateProfile changes the caller's full name and, when avatar is non-nil, replaces the avatar.
// An unsupported avatar type is rejected before anything is written to the blob store.
func (s *Service) UpdateProfile(ctx context.Context, id int64, fullname string, avatar *storage.Upload) (*User, error) {
	fullname = strings.TrimSpace(fullname)
	if fullname == "" || utf8.RuneCountInString(fullname) > MaxFullnameLength {
		return nil, errs.NewError(errs.ErrInvalidFullname).WithField("fullname", "must be between 1 and 100 characters")
	}

	if avatar != nil {
		if err := storage.ValidateImage(*avatar); err != nil {
			return nil, err
		}
	}

	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	update := ProfileUpdate{Fullname: &fullname}

	var newKey string
	if avatar != nil {
		newKey, err = s.blobs.Put(ctx, *avatar)
		if err != nil {
			if customErr, ok := errs.As(err); ok {
				return nil, customErr
			}
			return nil, errs.Upstream(errs.ErrFileStorageFailed, err, "Failed to store avatar", "user_id", id)
		}
		avatarURL := s.blobs.URL(newKey)
		update.AvatarURL = &avatarURL
	}

	updated, err := s.store.UpdateProfile(ctx, id, update)
	if err != nil {
		if newKey != "" {
			s.deleteBlobAsync(newKey)
		}
		if errors.Is(err, ErrNotFound) {
			return nil, errs.NewError(errs.ErrUserNotFound)
		}
		return nil, errs.Upstream(errs.ErrStorageFailed, err, "Failed to update profile", "user_id", id)
	}

	if newKey != "" {
		if oldKey, ok := strings.CutPrefix(current.Avatar, s.blobs.URL("")); ok && oldKey != "" && oldKey != newKey {
			s.deleteBlobAsync(oldKey)
		}
	}

	return updated, nil
}

// deleteBlobAsync removes an orphaned object without holding up the caller.
func (s *Service) deleteBlobAsync(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete orphaned blob")
		}
	}()
}
