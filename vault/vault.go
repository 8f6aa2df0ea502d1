package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Store format, line oriented and human readable:
//
//	version: 1
//	[profile-name]
//	salt: <base64>
//	Venue key: plaintext-api-key
//	Venue secret (encrypted): <base64 of iv||ciphertext>
//
// Profiles are concatenated; a profile runs from its [name] header to the
// next header or EOF. Duplicate profile names are rejected on both read and
// write, so a lookup is never ambiguous.

const (
	formatVersion   = 1
	versionPrefix   = "version:"
	saltPrefix      = "salt:"
	encryptedMarker = " (encrypted)"
)

// ErrProfileNotFound is returned when the named profile is not in the store.
var ErrProfileNotFound = errors.New("vault: profile not found")

// DuplicateProfileError reports a store containing the same profile name
// twice. The store never writes one; a hand-edited file can.
type DuplicateProfileError struct {
	Name string
}

func (e *DuplicateProfileError) Error() string {
	return fmt.Sprintf("vault: duplicate profile %q in credential store", e.Name)
}

// Field is one credential within a profile. Public fields are stored
// plaintext for operator legibility; everything else is encrypted.
type Field struct {
	Label  string
	Public bool
	Value  string
}

// Store owns one on-disk credential file. No other component touches the
// file directly.
type Store struct {
	path string
	log  *logrus.Logger
}

// NewStore returns a store backed by path. The file need not exist yet.
func NewStore(path string, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{path: path, log: log}
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

type profileBlock struct {
	name   string
	salt   string // base64
	lines  []string
	fields []rawField
}

type rawField struct {
	label     string
	encrypted bool
	value     string
}

// WriteProfile creates or wholesale-replaces the named profile. Fields are
// encrypted with a key derived from password and a fresh salt; other
// profiles in the store are preserved verbatim.
func (s *Store) WriteProfile(name, password string, fields []Field) error {
	if name == "" {
		return fmt.Errorf("vault: profile name must not be empty")
	}
	if strings.ContainsAny(name, "[]\n") {
		return fmt.Errorf("vault: profile name %q contains reserved characters", name)
	}

	var keep []profileBlock
	if data, err := os.ReadFile(s.path); err == nil {
		blocks, err := parseStore(string(data))
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if b.name != name {
				keep = append(keep, b)
			}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("vault: read store: %w", err)
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	key := DeriveKey(password, salt)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d\n", versionPrefix, formatVersion)
	fmt.Fprintf(&sb, "[%s]\n", name)
	fmt.Fprintf(&sb, "%s %s\n", saltPrefix, base64.StdEncoding.EncodeToString(salt))
	for _, f := range fields {
		if f.Public {
			fmt.Fprintf(&sb, "%s: %s\n", f.Label, f.Value)
			continue
		}
		payload, err := EncryptField(key, []byte(f.Value))
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%s%s: %s\n", f.Label, encryptedMarker,
			base64.StdEncoding.EncodeToString(payload))
	}
	for _, b := range keep {
		for _, line := range b.lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("vault: create store directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("vault: write store: %w", err)
	}

	// The file may predate us with looser permissions. Tighten; a refused
	// chmod is only a warning unless the platform reports a permission
	// error, which the operator needs to know about.
	if err := os.Chmod(s.path, 0600); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("vault: restrict store permissions: %w", err)
		}
		s.log.Warnf("could not restrict permissions of %q; other users of this system may be able to read it: %v",
			s.path, err)
	}
	return nil
}

// ReadProfile locates the named profile and returns its fields in stored
// order, with encrypted values decrypted under the password-derived key.
// A wrong password is not detected here: CFB has no authentication, so
// decryption simply yields garbage. Callers verify the credentials against
// the venue.
func (s *Store) ReadProfile(name, password string) ([]Field, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vault: no credential store at %q (run configure first): %w",
				s.path, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("vault: read store: %w", err)
	}

	blocks, err := parseStore(string(data))
	if err != nil {
		return nil, err
	}

	var found *profileBlock
	for i := range blocks {
		if blocks[i].name == name {
			found = &blocks[i]
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("vault: profile %q: %w", name, ErrProfileNotFound)
	}

	salt, err := base64.StdEncoding.DecodeString(found.salt)
	if err != nil {
		return nil, fmt.Errorf("vault: profile %q: bad salt: %w", name, err)
	}
	key := DeriveKey(password, salt)

	out := make([]Field, 0, len(found.fields))
	for _, rf := range found.fields {
		f := Field{Label: rf.label, Public: !rf.encrypted, Value: rf.value}
		if rf.encrypted {
			payload, err := base64.StdEncoding.DecodeString(rf.value)
			if err != nil {
				return nil, fmt.Errorf("vault: profile %q field %q: bad base64: %w", name, rf.label, err)
			}
			plain, err := DecryptField(key, payload)
			if err != nil {
				return nil, fmt.Errorf("vault: profile %q field %q: %w", name, rf.label, err)
			}
			f.Value = string(plain)
		}
		out = append(out, f)
	}
	return out, nil
}

// ProfileNames lists the profiles in the store, in file order.
func (s *Store) ProfileNames() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("vault: read store: %w", err)
	}
	blocks, err := parseStore(string(data))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.name
	}
	return names, nil
}

func parseStore(data string) ([]profileBlock, error) {
	lines := strings.Split(data, "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) && strings.HasPrefix(lines[i], versionPrefix) {
		ver := strings.TrimSpace(strings.TrimPrefix(lines[i], versionPrefix))
		if ver != fmt.Sprint(formatVersion) {
			return nil, fmt.Errorf("vault: unsupported store version %q", ver)
		}
		i++
	}
	// A headerless store (pre-versioning) parses the same way; the version
	// line is only enforced when present.

	var blocks []profileBlock
	seen := map[string]bool{}
	var cur *profileBlock

	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			name := trimmed[1 : len(trimmed)-1]
			if seen[name] {
				return nil, &DuplicateProfileError{Name: name}
			}
			seen[name] = true
			blocks = append(blocks, profileBlock{name: name, lines: []string{line}})
			cur = &blocks[len(blocks)-1]
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("vault: store line %d outside any profile: %q", i+1, trimmed)
		}
		cur.lines = append(cur.lines, line)

		if strings.HasPrefix(trimmed, saltPrefix) {
			cur.salt = strings.TrimSpace(strings.TrimPrefix(trimmed, saltPrefix))
			continue
		}

		colon := strings.Index(trimmed, ":")
		if colon < 0 {
			return nil, fmt.Errorf("vault: malformed store line %d: %q", i+1, trimmed)
		}
		label := trimmed[:colon]
		value := strings.TrimSpace(trimmed[colon+1:])
		rf := rawField{label: label, value: value}
		if strings.HasSuffix(label, encryptedMarker) {
			rf.label = strings.TrimSuffix(label, encryptedMarker)
			rf.encrypted = true
		}
		cur.fields = append(cur.fields, rf)
	}

	for _, b := range blocks {
		if b.salt == "" {
			return nil, fmt.Errorf("vault: profile %q has no salt line", b.name)
		}
	}
	return blocks, nil
}
