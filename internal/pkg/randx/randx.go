/*
Package randx provides helpers for generating unique identifiers.

It is used to derive collision-free blob keys for uploaded images: every key embeds the
upload timestamp and a random UUID, so concurrent uploads never write the same object.
*/
package randx

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// now is swapped in tests.
var now = time.Now

// UploadKey returns a unique object key of the form "<prefix>/<unix-millis>_<uuid><ext>".
// The extension is taken from the original file name and lower-cased; the rest of the
// client-supplied name is discarded.
func UploadKey(prefix, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	key := fmt.Sprintf("%d_%s%s", now().UnixMilli(), uuid.NewString(), ext)

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// SessionID returns a random identifier for a long-lived connection.
func SessionID() string {
	return uuid.NewString()
}
