package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/buckleypaul/rollcall/internal/errors"
)

// Credential is one stored session. The JSON names match the blob the
// browser build of this tool wrote to local storage.
type Credential struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	StudentID    string     `json:"stuId,omitempty"`
	SessionToken string     `json:"connectSid"`
	LastUsedAt   *time.Time `json:"lastUsed,omitempty"`
}

// UnmarshalJSON accepts lastUsed either as epoch milliseconds, as the
// browser build stored it, or as an RFC 3339 string.
func (c *Credential) UnmarshalJSON(data []byte) error {
	type plain Credential
	var aux struct {
		plain
		LastUsed json.RawMessage `json:"lastUsed"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Credential(aux.plain)
	c.LastUsedAt = nil

	raw := bytes.TrimSpace(aux.LastUsed)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return errors.Wrap(err, "lastUsed")
		}
		c.LastUsedAt = &t
		return nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return errors.Wrap(err, "lastUsed")
	}
	t := time.UnixMilli(int64(ms)).UTC()
	c.LastUsedAt = &t
	return nil
}

// RunRecord captures the result of one batch run.
type RunRecord struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}
