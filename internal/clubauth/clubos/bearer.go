package clubos

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// DeriveBearer synthesises the token ClubOS AJAX endpoints expect when
// the vendor did not set apiV3AccessToken. It has JWT shape but is not a
// verifiable JWT: the third segment is the first 43 hex chars of
// sha256("<sessionId>:<userId>").
func DeriveBearer(sessionID, userID string) (string, error) {
	if sessionID == "" || userID == "" {
		return "", fmt.Errorf("derive bearer: session id and user id required")
	}

	// Numeric ids are encoded as numbers, as the vendor does.
	var uid any = userID
	if n, err := strconv.ParseInt(userID, 10, 64); err == nil {
		uid = n
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"delegateUserId": uid,
		"loggedInUserId": uid,
		"sessionId":      sessionID,
	})
	tok.Header = map[string]any{"alg": jwt.SigningMethodHS256.Alg()}

	signing, err := tok.SigningString()
	if err != nil {
		return "", fmt.Errorf("derive bearer: %w", err)
	}

	sum := sha256.Sum256([]byte(sessionID + ":" + userID))
	return signing + "." + hex.EncodeToString(sum[:])[:43], nil
}
