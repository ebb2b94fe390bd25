package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewBusinessNumber returns a human readable identifier such as
// TXN-1718000000000-9f1c2a.
func NewBusinessNumber(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), now.UnixMilli(), suffix)
}
