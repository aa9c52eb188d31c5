package hook

import (
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes entry ids so they never collide with other UUIDv5 users.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hookwire:entry"))

// EntryID derives the deterministic id of an entry from its hook name,
// handler identity and group. The same triple always yields the same id.
func EntryID(name, identity, group string) string {
	if group == "" {
		group = DefaultGroup
	}
	key := strings.Join([]string{name, identity, group}, "\x00")
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}
