// Package profile stores named interest profiles, one JSON file per user.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deusflow/digest/internal/config"
	"github.com/deusflow/digest/internal/logger"
)

// DefaultDir is where profiles live unless configured otherwise.
const DefaultDir = "data/user_profiles"

var (
	ErrNotFound = errors.New("profile not found")
	ErrInvalid  = errors.New("invalid profile")
)

// Profile is a user's named set of interests plus matching configuration.
type Profile struct {
	Name              string    `json:"name"`
	Interests         []string  `json:"interests"`
	MatchingMethod    string    `json:"matching_method"`
	MinRelevanceScore float64   `json:"min_relevance_score"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.MatchingMethod != config.MatchKeyword && p.MatchingMethod != config.MatchEmbedding {
		return fmt.Errorf("%w: matching_method must be %q or %q", ErrInvalid, config.MatchKeyword, config.MatchEmbedding)
	}
	if p.MinRelevanceScore < 0 || p.MinRelevanceScore > 1 {
		return fmt.Errorf("%w: min_relevance_score must be within [0,1]", ErrInvalid)
	}
	return nil
}

// Key is the file name for a profile: lower-cased, spaces replaced by underscores.
func Key(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_") + ".json"
}

type Store struct {
	dir string
	log *slog.Logger
	now func() time.Time
}

func NewStore(dir string, log *slog.Logger) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir, log: logger.OrDiscard(log), now: time.Now}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, Key(name))
}

// Load reads the named profile. A missing file wraps ErrNotFound.
func (s *Store) Load(name string) (Profile, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", name, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", name, err)
	}
	if p.MatchingMethod == "" {
		p.MatchingMethod = config.MatchKeyword
	}
	s.log.Info("loaded user profile", "profile", p.Name, "interests", len(p.Interests))
	return p, nil
}

// Save writes p, keeping CreatedAt from an existing record and stamping UpdatedAt.
func (s *Store) Save(p Profile) (Profile, error) {
	if p.MatchingMethod == "" {
		p.MatchingMethod = config.MatchKeyword
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	now := s.now().UTC()
	p.CreatedAt = now
	if existing, err := s.Load(p.Name); err == nil && !existing.CreatedAt.IsZero() {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = now

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Profile{}, fmt.Errorf("create profiles dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return Profile{}, fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(s.path(p.Name), data, 0o644); err != nil {
		return Profile{}, fmt.Errorf("write profile: %w", err)
	}

	s.log.Info("saved user profile", "path", s.path(p.Name))
	return p, nil
}

var displayCaser = cases.Title(language.English)

// List returns display names of stored profiles, sorted. A missing
// directory is an empty list.
func (s *Store) List() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".json")
		names = append(names, displayCaser.String(strings.ReplaceAll(stem, "_", " ")))
	}
	sort.Strings(names)
	return names, nil
}
