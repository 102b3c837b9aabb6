package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
)

// NamespaceKey names the durable blob holding the credential collection.
const NamespaceKey = "attendance_users_v1"

// ErrMalformedInput is returned when a bulk import payload is not a JSON array.
var ErrMalformedInput = errors.New("malformed input")

// Store owns the credential collection and mirrors it to disk on every
// mutation. It also keeps an append-only history of batch runs.
type Store struct {
	root  string
	mu    sync.Mutex
	creds []Credential
	log   *zap.SugaredLogger
}

// New creates a Store rooted at the given data directory. Call Load to
// hydrate it from disk.
func New(root string) *Store {
	return &Store{
		root: root,
		log:  logger.ComponentLogger("store"),
	}
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) blobPath() string {
	return filepath.Join(s.root, NamespaceKey+".json")
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

// Load hydrates the collection from the durable blob. A missing blob means
// an empty store. An unparseable blob is logged and also treated as empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = nil
	data, err := os.ReadFile(s.blobPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read credential blob")
	}

	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		s.log.Warnw("discarding unreadable credential blob",
			logger.FieldPath, s.blobPath(),
			logger.FieldError, err)
		return nil
	}
	kept := make([]Credential, 0, len(creds))
	seen := make(map[string]bool, len(creds))
	for _, c := range creds {
		c, ok := normalize(c, len(kept)+1)
		if !ok {
			continue
		}
		c.ID = uniqueID(c.ID, seen)
		kept = append(kept, c)
	}
	if dropped := len(creds) - len(kept); dropped > 0 {
		s.log.Warnw("dropped stored credentials without a session token", "dropped", dropped)
	}
	s.creds = kept
	s.log.Debugw("credentials loaded", logger.FieldCount, len(kept))
	return nil
}

// Credentials returns a snapshot of the collection in insertion order.
func (s *Store) Credentials() []Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCredentials(s.creds)
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}

// Add appends a credential. A credential whose session token is empty after
// trimming is dropped silently and reported with ok=false.
func (s *Store) Add(c Credential) (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := normalize(c, len(s.creds)+1)
	if !ok {
		return Credential{}, false, nil
	}

	next := append(cloneCredentials(s.creds), c)
	if err := s.commitLocked(next); err != nil {
		return Credential{}, false, err
	}
	return c, true, nil
}

// Remove deletes the credential with the given id. Unknown ids are ignored.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Credential, 0, len(s.creds))
	for _, c := range s.creds {
		if c.ID != id {
			next = append(next, c)
		}
	}
	if len(next) == len(s.creds) {
		return nil
	}
	return s.commitLocked(next)
}

// MarkUsed stamps the credential's last-used time.
func (s *Store) MarkUsed(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneCredentials(s.creds)
	for i := range next {
		if next[i].ID == id {
			stamp := at.UTC().Round(0)
			next[i].LastUsedAt = &stamp
			return s.commitLocked(next)
		}
	}
	return nil
}

// BulkImport parses a JSON array of credential objects and appends every
// element that carries a session token. The session token may be given as
// connectSid or connect_sid. Anything other than a JSON array fails with
// ErrMalformedInput and leaves the store untouched.
func (s *Store) BulkImport(raw []byte) (int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return 0, errors.Wrap(ErrMalformedInput, err.Error())
	}
	if elems == nil {
		return 0, errors.Wrap(ErrMalformedInput, "top-level value is not an array")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneCredentials(s.creds)
	seen := make(map[string]bool, len(next)+len(elems))
	for _, c := range next {
		seen[c.ID] = true
	}
	imported := 0
	for _, elem := range elems {
		c, ok := decodeImported(elem)
		if !ok {
			continue
		}
		c, ok = normalize(c, len(next)+1)
		if !ok {
			continue
		}
		c.ID = uniqueID(c.ID, seen)
		next = append(next, c)
		imported++
	}
	if imported == 0 {
		return 0, nil
	}
	if err := s.commitLocked(next); err != nil {
		return 0, err
	}
	s.log.Infow("bulk import", logger.FieldCount, imported, "dropped", len(elems)-imported)
	return imported, nil
}

// Export returns the durable blob for the current collection.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return marshalCredentials(s.creds)
}

// commitLocked persists next and only then swaps it in, so a failed write
// leaves memory and disk in agreement.
func (s *Store) commitLocked(next []Credential) error {
	data, err := marshalCredentials(next)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	if err := os.WriteFile(s.blobPath(), data, 0o600); err != nil {
		return errors.Wrap(err, "write credential blob")
	}
	s.creds = next
	return nil
}

func marshalCredentials(creds []Credential) ([]byte, error) {
	if creds == nil {
		creds = []Credential{}
	}
	return json.MarshalIndent(creds, "", "  ")
}

func cloneCredentials(in []Credential) []Credential {
	if in == nil {
		return nil
	}
	out := make([]Credential, len(in))
	copy(out, in)
	return out
}

// normalize trims fields and fills the id and placeholder name. position is
// the 1-based slot the credential will occupy.
func normalize(c Credential, position int) (Credential, bool) {
	c.SessionToken = strings.TrimSpace(c.SessionToken)
	if c.SessionToken == "" {
		return Credential{}, false
	}
	c.StudentID = strings.TrimSpace(c.StudentID)
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = fmt.Sprintf("User %d", position)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.LastUsedAt != nil {
		stamp := c.LastUsedAt.UTC().Round(0)
		c.LastUsedAt = &stamp
	}
	return c, true
}

// uniqueID returns id, or a fresh one when id is already taken, and
// records the result in seen.
func uniqueID(id string, seen map[string]bool) string {
	if seen[id] {
		id = uuid.NewString()
	}
	seen[id] = true
	return id
}

var (
	tokenAliases   = []string{"connectSid", "connect_sid"}
	studentAliases = []string{"stuId", "StuId", "stu_id"}
)

// decodeImported reads one bulk-import element. Non-object elements and
// non-string values are treated as absent.
func decodeImported(raw json.RawMessage) (Credential, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Credential{}, false
	}
	return Credential{
		ID:           firstString(fields, "id"),
		Name:         firstString(fields, "name"),
		StudentID:    firstString(fields, studentAliases...),
		SessionToken: firstString(fields, tokenAliases...),
	}, true
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// AddRun appends a batch run record to the history.
func (s *Store) AddRun(r RunRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return s.appendRecord("runs.json", r)
}

// Runs returns all recorded batch runs, oldest first.
func (s *Store) Runs() ([]RunRecord, error) {
	var records []RunRecord
	err := s.loadRecords("runs.json", &records)
	return records, err
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			s.log.Warnw("history file unreadable, starting over",
				logger.FieldPath, path,
				logger.FieldError, err)
			records = nil
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
