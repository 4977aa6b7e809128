package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Kind: KindValidation, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Kind: KindValidation, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Kind: KindValidation, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Kind: KindValidation, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Kind: KindValidation, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Kind: KindValidation, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Kind: KindValidation, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnknownOperation:      {Code: ErrUnknownOperation, Kind: KindValidation, Message: "Unknown operation %q.", Status: http.StatusBadRequest},

	// 2xxx: Chatroom and Content Business Logic Errors
	ErrChatroomNameInvalid:   {Code: ErrChatroomNameInvalid, Kind: KindValidation, Message: "Invalid chatroom name.", Status: http.StatusBadRequest},
	ErrChatroomNameExists:    {Code: ErrChatroomNameExists, Kind: KindConflict, Message: "Chatroom with this name already exists.", Status: http.StatusConflict},
	ErrChatroomNotFound:      {Code: ErrChatroomNotFound, Kind: KindNotFound, Message: "Chatroom not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Kind: KindValidation, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Kind: KindValidation, Message: "Message must contain text or an image.", Status: http.StatusBadRequest},
	ErrUnsupportedImageType:  {Code: ErrUnsupportedImageType, Kind: KindConflict, Message: "Invalid file type. Only JPEG, PNG and GIF are allowed.", Status: http.StatusConflict},
	ErrFileSizeTooLarge:      {Code: ErrFileSizeTooLarge, Kind: KindValidation, Message: "File is too large.", Status: http.StatusRequestEntityTooLarge},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Kind: KindAuth, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrUserNotFound:       {Code: ErrUserNotFound, Kind: KindNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrInvalidFullname:    {Code: ErrInvalidFullname, Kind: KindValidation, Message: "Invalid full name.", Status: http.StatusBadRequest},
	ErrSubscriptionExists: {Code: ErrSubscriptionExists, Kind: KindConflict, Message: "Subscription %q already exists.", Status: http.StatusConflict},
	ErrSessionClosed:      {Code: ErrSessionClosed, Kind: KindConflict, Message: "Subscription session is closed.", Status: http.StatusConflict},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Kind: KindUpstream, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageFailed:     {Code: ErrStorageFailed, Kind: KindUpstream, Message: "Storage is temporarily unavailable.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Kind: KindUpstream, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
	ErrPresenceFailed:    {Code: ErrPresenceFailed, Kind: KindUpstream, Message: "Presence is temporarily unavailable.", Status: http.StatusServiceUnavailable},
}
