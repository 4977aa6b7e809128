package gateway

import (
	"encoding/json"

	"livechat/internal/app/chatroom"
	"livechat/internal/app/eventbus"
	"livechat/internal/app/presence"
	"livechat/internal/app/typing"
)

// Operation names a subscription a client can open.
type Operation string

const (
	OpNewMessage         Operation = "newMessage"
	OpUserStartedTyping  Operation = "userStartedTyping"
	OpUserStoppedTyping  Operation = "userStoppedTyping"
	OpLiveUserInChatroom Operation = "liveUserInChatroom"
)

// Args are the subscription arguments. UserID is the viewing user for typing
// subscriptions and defaults to the session's user.
type Args struct {
	ChatroomID int64 `json:"chatroomId"`
	UserID     int64 `json:"userId,omitempty"`
}

type resolver func(eventbus.Message) (json.RawMessage, error)

type operation struct {
	class   eventbus.EventClass
	filter  func(Args) eventbus.Filter
	resolve resolver
}

var operations = map[Operation]operation{
	OpNewMessage: {
		class: eventbus.ClassNewMessage,
		resolve: resolveWith(func(e chatroom.NewMessageEvent) any {
			return e.Message
		}),
	},
	OpUserStartedTyping: {
		class:   eventbus.ClassUserStartedTyping,
		filter:  excludeViewer,
		resolve: resolveWith(typingUser),
	},
	OpUserStoppedTyping: {
		class:   eventbus.ClassUserStoppedTyping,
		filter:  excludeViewer,
		resolve: resolveWith(typingUser),
	},
	OpLiveUserInChatroom: {
		class: eventbus.ClassLiveUsers,
		filter: func(args Args) eventbus.Filter {
			return eventbus.Typed(func(e presence.LiveUsersEvent) bool {
				return e.ChatroomID == args.ChatroomID
			})
		},
		resolve: resolveWith(func(e presence.LiveUsersEvent) any {
			return e.LiveUsers
		}),
	},
}

func excludeViewer(args Args) eventbus.Filter {
	return typing.ExcludeSelf(args.UserID)
}

func typingUser(e typing.Event) any {
	return e.User
}

// resolveWith decodes the bus payload as T and encodes the part the client receives.
func resolveWith[T any](pick func(T) any) resolver {
	return func(msg eventbus.Message) (json.RawMessage, error) {
		var event T
		if err := msg.Decode(&event); err != nil {
			return nil, err
		}
		return json.Marshal(pick(event))
	}
}
