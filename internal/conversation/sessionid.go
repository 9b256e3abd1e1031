package conversation

import (
	"math/rand"
	"strconv"
	"time"
)

// NewSessionID joins a random base-36 fragment with the current unix
// milliseconds in base 36. Unique enough for a pass-through token; not secret.
func NewSessionID() string {
	random := strconv.FormatUint(rand.Uint64(), 36)
	return random + strconv.FormatInt(time.Now().UnixMilli(), 36)
}
