package voting

import (
	"strings"

	"github.com/google/uuid"
)

// ResolveDisplayName picks a human-readable name from an ordered list of
// optional sources (profile name, auth metadata, email prefix, ...). The
// first non-blank source wins; when every source is blank the truncated
// user id is the deterministic fallback.
func ResolveDisplayName(userID uuid.UUID, sources ...string) string {
	for _, source := range sources {
		if name := strings.TrimSpace(source); name != "" {
			return name
		}
	}
	return "user-" + userID.String()[:8]
}
