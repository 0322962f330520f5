package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("coinforge:players"))

// Resolve maps a platform-scoped account id onto a stable player id.
func Resolve(platform, rawID string) (string, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	rawID = strings.TrimSpace(rawID)
	if platform == "" {
		return "", fmt.Errorf("platform is required")
	}
	if rawID == "" {
		return "", fmt.Errorf("user id is required")
	}
	return uuid.NewSHA1(namespace, []byte(platform+":"+rawID)).String(), nil
}
