/*
Package errs provides custom error types and application-level error code constants.

These error codes identify business and system failures both internally within the
server and on the wire (HTTP envelopes and WebSocket error frames).
*/
package errs

// Kind classifies an error for propagation decisions.
type Kind string

const (
	// KindValidation marks malformed input rejected before it reaches a service.
	KindValidation Kind = "VALIDATION"

	// KindNotFound marks a reference to a chatroom or user that does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindConflict marks a request that collides with existing state (duplicate name, unsupported image type).
	KindConflict Kind = "CONFLICT"

	// KindAuth marks a missing or invalid credential.
	KindAuth Kind = "AUTH"

	// KindUpstream marks a storage, blob store or bus failure not attributable to the caller.
	KindUpstream Kind = "UPSTREAM"
)

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnknownOperation indicates a subscription or frame type the gateway does not serve.
	ErrUnknownOperation = 1008
)

// 2xxx: Chatroom and Content Business Logic Errors
const (
	// ErrChatroomNameInvalid indicates that the chatroom name is empty or too long.
	ErrChatroomNameInvalid = 2101

	// ErrChatroomNameExists indicates that a chatroom with the requested name already exists.
	ErrChatroomNameExists = 2102

	// ErrChatroomNotFound indicates that the referenced chatroom does not exist.
	ErrChatroomNotFound = 2103

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageEmpty indicates a message carrying neither text nor an image.
	ErrMessageEmpty = 2202

	// ErrUnsupportedImageType indicates an upload outside the JPEG/PNG/GIF allow-list.
	ErrUnsupportedImageType = 2301

	// ErrFileSizeTooLarge indicates an upload larger than the allowed size.
	ErrFileSizeTooLarge = 2302
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing, malformed or expired credential.
	ErrUnauthorized = 3001

	// ErrUserNotFound indicates that a referenced user does not exist.
	ErrUserNotFound = 3002

	// ErrInvalidFullname indicates an empty or oversized profile name.
	ErrInvalidFullname = 3003

	// ErrSubscriptionExists indicates a subscribe frame reusing a live subscription id.
	ErrSubscriptionExists = 3101

	// ErrSessionClosed indicates a subscribe call on a session that has already been closed.
	ErrSessionClosed = 3102
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates the persistence collaborator failed.
	ErrStorageFailed = 5001

	// ErrFileStorageFailed indicates the blob store failed.
	ErrFileStorageFailed = 5002

	// ErrPresenceFailed indicates the presence store failed.
	ErrPresenceFailed = 5003
)
