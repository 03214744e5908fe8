package receiver

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// StorageName maps a client-supplied filename to a name that is safe to join
// onto the upload directory: no separators, no NUL or control characters,
// never "." or "..". Directory parts are dropped; names with nothing usable
// left get a generated "upload-<uuid>".
func StorageName(clientName string) string {
	s := strings.ReplaceAll(clientName, `\`, "/")
	s = path.Base(path.Clean("/" + s))

	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f || r == '/' {
			continue
		}
		b.WriteRune(r)
	}
	name := strings.TrimSpace(b.String())
	if name == "" || name == "." || name == ".." {
		return "upload-" + uuid.NewString()
	}
	return name
}
