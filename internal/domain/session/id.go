package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a collision-resistant session identifier encoding the
// creation timestamp plus a random suffix. IDs are immutable once created
// and sort lexicographically by creation time.
func NewID(now time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("sess-%s-%s", now.UTC().Format("20060102T150405"), suffix)
}
