package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const timeFormat = time.RFC3339Nano // Use a precise time format

// DefaultLimit and MaxLimit bound page sizes for list endpoints.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Page is a keyset page request.
type Page struct {
	Limit     int
	NextToken string
}

// Normalize clamps the limit into [1, MaxLimit], defaulting to DefaultLimit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Cursor is the keyset position after the last returned row: its sort time and id.
type Cursor struct {
	At time.Time
	ID string
}

// EncodeToken creates a base64 encoded token from a sort time and a row id.
// This is used for consistent pagination across different repositories.
func EncodeToken(at time.Time, id string) string {
	tokenStr := fmt.Sprintf("%s|%s", at.Format(timeFormat), id)
	return base64.StdEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeToken parses the base64 encoded token back into a cursor.
func DecodeToken(token string) (Cursor, error) {
	decodedBytes, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	tokenStr := string(decodedBytes)
	parts := strings.SplitN(tokenStr, "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("invalid pagination token format (split)")
	}

	at, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (time parse): %w", err)
	}

	return Cursor{At: at, ID: parts[1]}, nil
}

// After reports whether a row sorted by (at, id) comes strictly after the cursor.
func (c Cursor) After(at time.Time, id string) bool {
	if !at.Equal(c.At) {
		return at.After(c.At)
	}
	return id > c.ID
}
