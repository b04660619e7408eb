package enrollment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSerial generates a globally unique, unpredictable certificate serial:
// the hex-encoded sha256 of the learner, the course, a random nonce, and a
// high-resolution timestamp. Uniqueness is ultimately guaranteed by the
// store's (user_id, course_id) constraint; the hash only needs to be
// unguessable and collision-free across pairs.
func NewSerial(userID, courseID string) string {
	nonce := uuid.NewString()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%d", userID, courseID, nonce, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])
}
