package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"livechat/internal/app/chatroom"
	"livechat/internal/app/user"
)

// SearchLimit caps the number of users returned by SearchUsers.
const SearchLimit = 20

const (
	userColumns     = "u.id, u.fullname, u.email, u.avatar, u.created_at, u.updated_at"
	chatroomColumns = "c.id, c.name, c.created_at, c.updated_at"
	messageColumns  = "m.id, m.chatroom_id, m.content, m.image_url, m.created_at, m.updated_at"
)

// Store is the PostgreSQL implementation of chatroom.Store and user.Store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ chatroom.Store = (*Store)(nil)
	_ user.Store     = (*Store)(nil)
)

// NewStore returns a Store using pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- users ---

func (s *Store) FindUser(ctx context.Context, id int64) (*user.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users u WHERE u.id = $1", id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id int64, update user.ProfileUpdate) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users u
		SET fullname = COALESCE($2, u.fullname),
		    avatar = COALESCE($3, u.avatar),
		    updated_at = now()
		WHERE u.id = $1
		RETURNING `+userColumns,
		id, update.Fullname, update.AvatarURL,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) SearchUsers(ctx context.Context, fullname string, excludeID int64) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.fullname ILIKE '%' || $1 || '%' AND u.id <> $2
		ORDER BY u.fullname, u.id
		LIMIT $3`,
		escapeLike(fullname), excludeID, SearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectUsers(rows)
}

// CreateUser inserts a user. It backs development seeding and integration tests;
// account registration itself is handled outside this service.
func (s *Store) CreateUser(ctx context.Context, fullname, email string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users AS u (fullname, email) VALUES ($1, $2)
		RETURNING `+userColumns,
		fullname, email,
	)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user %q: %w", email, err)
	}
	return u, nil
}

// --- chatrooms ---

func (s *Store) FindChatroom(ctx context.Context, id int64, expand chatroom.Expand) (*chatroom.Chatroom, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+chatroomColumns+" FROM chatrooms c WHERE c.id = $1", id)

	room, err := scanChatroom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chatroom.ErrNotFound
		}
		return nil, fmt.Errorf("find chatroom %d: %w", id, err)
	}

	if err := s.expand(ctx, room, expand); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) FindChatroomByName(ctx context.Context, name string) (*chatroom.Chatroom, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+chatroomColumns+" FROM chatrooms c WHERE c.name = $1", name)

	room, err := scanChatroom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chatroom.ErrNotFound
		}
		return nil, fmt.Errorf("find chatroom %q: %w", name, err)
	}
	return room, nil
}

func (s *Store) ListChatroomsForUser(ctx context.Context, userID int64, expand chatroom.Expand) ([]chatroom.Chatroom, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+chatroomColumns+`
		FROM chatrooms c
		JOIN chatroom_users cu ON cu.chatroom_id = c.id
		WHERE cu.user_id = $1
		ORDER BY c.created_at DESC, c.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chatrooms for user %d: %w", userID, err)
	}

	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chatroom.Chatroom, error) {
		room, err := scanChatroom(row)
		if err != nil {
			return chatroom.Chatroom{}, err
		}
		return *room, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan chatrooms for user %d: %w", userID, err)
	}

	for i := range rooms {
		if err := s.expand(ctx, &rooms[i], expand); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func (s *Store) CreateChatroom(ctx context.Context, name string, creatorID int64) (*chatroom.Chatroom, error) {
	var room *chatroom.Chatroom

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO chatrooms AS c (name) VALUES ($1)
			RETURNING `+chatroomColumns,
			name,
		)

		var err error
		if room, err = scanChatroom(row); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, "INSERT INTO chatroom_users (chatroom_id, user_id) VALUES ($1, $2)", room.ID, creatorID)
		return err
	})
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return nil, chatroom.ErrDuplicateName
		case IsForeignKeyViolation(err):
			return nil, chatroom.ErrUnknownUser
		}
		return nil, fmt.Errorf("create chatroom %q: %w", name, err)
	}

	return room, nil
}

func (s *Store) AddMembers(ctx context.Context, chatroomID int64, userIDs []int64) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "UPDATE chatrooms SET updated_at = now() WHERE id = $1", chatroomID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return chatroom.ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO chatroom_users (chatroom_id, user_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING`,
			chatroomID, userIDs,
		)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, chatroom.ErrNotFound):
			return err
		case IsForeignKeyViolation(err):
			return chatroom.ErrUnknownUser
		}
		return fmt.Errorf("add members to chatroom %d: %w", chatroomID, err)
	}
	return nil
}

func (s *Store) DeleteChatroom(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM chatrooms WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete chatroom %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return chatroom.ErrNotFound
	}
	return nil
}

// --- messages ---

func (s *Store) CreateMessage(ctx context.Context, msg chatroom.NewMessage) (*chatroom.Message, error) {
	row := s.pool.QueryRow(ctx, `
		WITH m AS (
			INSERT INTO messages (chatroom_id, user_id, content, image_url)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT `+messageColumns+`, `+userColumns+`, `+chatroomColumns+`
		FROM m
		JOIN users u ON u.id = m.user_id
		JOIN chatrooms c ON c.id = m.chatroom_id`,
		msg.ChatroomID, msg.AuthorID, msg.Content, msg.ImageURL,
	)

	var (
		m    chatroom.Message
		room chatroom.Chatroom
	)
	err := row.Scan(
		&m.ID, &m.ChatroomID, &m.Content, &m.ImageURL, &m.CreatedAt, &m.UpdatedAt,
		&m.User.ID, &m.User.Fullname, &m.User.Email, &m.User.Avatar, &m.User.CreatedAt, &m.User.UpdatedAt,
		&room.ID, &room.Name, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if IsForeignKeyViolation(err) && errors.As(err, &pgErr) {
			if pgErr.ConstraintName == "messages_chatroom_id_fkey" {
				return nil, chatroom.ErrNotFound
			}
			return nil, chatroom.ErrUnknownUser
		}
		return nil, fmt.Errorf("create message in chatroom %d: %w", msg.ChatroomID, err)
	}

	m.Chatroom = &room
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, chatroomID int64) ([]chatroom.Message, error) {
	if err := s.requireChatroom(ctx, chatroomID); err != nil {
		return nil, err
	}
	return s.listMessages(ctx, chatroomID)
}

func (s *Store) ListMembers(ctx context.Context, chatroomID int64) ([]user.User, error) {
	if err := s.requireChatroom(ctx, chatroomID); err != nil {
		return nil, err
	}
	return s.listMembers(ctx, chatroomID)
}

func (s *Store) listMessages(ctx context.Context, chatroomID int64) ([]chatroom.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`, `+userColumns+`
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.chatroom_id = $1
		ORDER BY m.id`,
		chatroomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages of chatroom %d: %w", chatroomID, err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chatroom.Message, error) {
		var m chatroom.Message
		err := row.Scan(
			&m.ID, &m.ChatroomID, &m.Content, &m.ImageURL, &m.CreatedAt, &m.UpdatedAt,
			&m.User.ID, &m.User.Fullname, &m.User.Email, &m.User.Avatar, &m.User.CreatedAt, &m.User.UpdatedAt,
		)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages of chatroom %d: %w", chatroomID, err)
	}
	return messages, nil
}

func (s *Store) listMembers(ctx context.Context, chatroomID int64) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN chatroom_users cu ON cu.user_id = u.id
		WHERE cu.chatroom_id = $1
		ORDER BY u.id`,
		chatroomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members of chatroom %d: %w", chatroomID, err)
	}
	return collectUsers(rows)
}

func (s *Store) requireChatroom(ctx context.Context, id int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM chatrooms WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check chatroom %d: %w", id, err)
	}
	if !exists {
		return chatroom.ErrNotFound
	}
	return nil
}

func (s *Store) expand(ctx context.Context, room *chatroom.Chatroom, expand chatroom.Expand) error {
	var err error
	if expand.Has(chatroom.ExpandUsers) {
		if room.Users, err = s.listMembers(ctx, room.ID); err != nil {
			return err
		}
	}
	if expand.Has(chatroom.ExpandMessages) {
		if room.Messages, err = s.listMessages(ctx, room.ID); err != nil {
			return err
		}
	}
	return nil
}

// --- scanning ---

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Fullname, &u.Email, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanChatroom(row pgx.Row) (*chatroom.Chatroom, error) {
	var c chatroom.Chatroom
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectUsers(rows pgx.Rows) ([]user.User, error) {
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		u, err := scanUser(row)
		if err != nil {
			return user.User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
