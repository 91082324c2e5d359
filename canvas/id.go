package canvas

import (
	"fmt"
	"math/rand"
	"time"
)

// NewObjectID assigns an id at object creation time on the originating
// client. Millisecond timestamp plus a random suffix is monotonic enough to
// avoid same-millisecond collisions between peers in practice; it is not
// meant to be cryptographically unique.
func NewObjectID() string {
	return fmt.Sprintf("obj-%d-%d", time.Now().UnixMilli(), rand.Intn(100000))
}
