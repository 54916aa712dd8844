// Package profile persists audit profiles: the lab being audited, its match
// terms and threshold overrides.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/source"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
	"github.com/google/uuid"
)

const profileFileName = "profile.json"

// Profile is one lab audit configuration persisted on disk.
type Profile struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Terms       []string           `json:"terms"`
	Thresholds  map[string]float64 `json:"thresholds,omitempty"`
	Exports     Exports            `json:"exports,omitempty"`
	Schedule    string             `json:"schedule,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`

	rootDir string
}

// Exports names file exports audited instead of the configured database.
type Exports struct {
	Demographic string `json:"demographic,omitempty"`
	Laboratory  string `json:"laboratory,omitempty"`
}

// HasFiles reports whether both exports are set.
func (e Exports) HasFiles() bool { return e.Demographic != "" && e.Laboratory != "" }

// New constructs an in-memory profile. Call Save to persist.
func New(name, description, rootDir string) *Profile {
	now := time.Now()
	return &Profile{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Thresholds:  map[string]float64{},
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}
}

// Dir returns the directory holding the named profile.
func Dir(profilesDir, name string) string {
	return filepath.Join(profilesDir, utils.SafeName(name))
}

// Load reads profile.json from dir.
func Load(dir string) (*Profile, error) {
	path := filepath.Join(dir, profileFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("profile not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if p.Thresholds == nil {
		p.Thresholds = map[string]float64{}
	}
	p.rootDir = dir
	return &p, nil
}

// Resolve loads a profile given either its directory or its name under
// profilesDir.
func Resolve(profilesDir, nameOrDir string) (*Profile, error) {
	if fi, err := os.Stat(filepath.Join(nameOrDir, profileFileName)); err == nil && !fi.IsDir() {
		return Load(nameOrDir)
	}
	return Load(Dir(profilesDir, nameOrDir))
}

// List loads every profile under profilesDir, sorted by name.
func List(profilesDir string) ([]*Profile, error) {
	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}
	var out []*Profile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := Load(filepath.Join(profilesDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RootDir returns the on-disk profile directory path.
func (p *Profile) RootDir() string { return p.rootDir }

// Save writes profile.json using atomic write.
func (p *Profile) Save() error {
	if p.rootDir == "" {
		return errors.New("profile root directory not set")
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, profileFileName), data)
}

// AddTerm adds a facility/lab match term. Duplicates (ignoring case) are
// rejected, as is a sixth term.
func (p *Profile) AddTerm(term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return errors.New("match term cannot be empty")
	}
	for _, t := range p.Terms {
		if strings.EqualFold(t, term) {
			return fmt.Errorf("match term %q already present", term)
		}
	}
	if len(p.Terms) >= source.MaxTerms {
		return fmt.Errorf("a profile holds at most %d match terms", source.MaxTerms)
	}
	p.Terms = append(p.Terms, term)
	p.UpdatedAt = time.Now()
	return nil
}

// RemoveTerm drops a match term; it reports whether one was removed.
func (p *Profile) RemoveTerm(term string) bool {
	for i, t := range p.Terms {
		if strings.EqualFold(t, strings.TrimSpace(term)) {
			p.Terms = append(p.Terms[:i], p.Terms[i+1:]...)
			p.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// SetThreshold records a per-field threshold override.
func (p *Profile) SetThreshold(field string, percent float64) error {
	field = strings.TrimSpace(field)
	if field == "" {
		return errors.New("field cannot be empty")
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %v", percent)
	}
	if p.Thresholds == nil {
		p.Thresholds = map[string]float64{}
	}
	p.Thresholds[field] = percent
	p.UpdatedAt = time.Now()
	return nil
}
