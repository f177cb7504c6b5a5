package seed

import (
	"embed"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"letterarchive/internal/domain/models"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

// RevisionFixture is one edit applied after the letter is created.
type RevisionFixture struct {
	Editor  string  `yaml:"editor"`
	Title   *string `yaml:"title"`
	Content string  `yaml:"content"`
}

// LetterFixture describes one letter to seed. ID defaults to Date.
type LetterFixture struct {
	ID        string            `yaml:"id"`
	Date      string            `yaml:"date"`
	Title     string            `yaml:"title"`
	Author    *string           `yaml:"author"`
	Recipient *string           `yaml:"recipient"`
	Location  *string           `yaml:"location"`
	Summary   *string           `yaml:"summary"`
	Tags      []string          `yaml:"tags"`
	Content   string            `yaml:"content"`
	Revisions []RevisionFixture `yaml:"revisions"`
}

// Fixtures is the top-level shape of a fixture file.
type Fixtures struct {
	Letters []LetterFixture `yaml:"letters"`
}

// LoadFixtures parses and checks a fixture file.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	seen := make(map[string]bool, len(fx.Letters))
	for i := range fx.Letters {
		l := &fx.Letters[i]
		if _, err := time.Parse(models.LetterDateLayout, l.Date); err != nil {
			return nil, fmt.Errorf("letter %d: invalid date %q", i+1, l.Date)
		}
		if l.ID == "" {
			l.ID = l.Date
		}
		if _, err := models.ParseLetterDate(l.ID); err != nil {
			return nil, fmt.Errorf("letter %d: %w", i+1, err)
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("letter %d: duplicate id %q", i+1, l.ID)
		}
		seen[l.ID] = true
		if strings.TrimSpace(l.Title) == "" {
			return nil, fmt.Errorf("letter %s: title is required", l.ID)
		}
		if strings.TrimSpace(l.Content) == "" {
			return nil, fmt.Errorf("letter %s: content is required", l.ID)
		}
		for j, rev := range l.Revisions {
			if strings.TrimSpace(rev.Content) == "" {
				return nil, fmt.Errorf("letter %s revision %d: content is required", l.ID, j+1)
			}
		}
	}
	return &fx, nil
}

// SampleFixtures returns the built-in development fixtures.
func SampleFixtures() (*Fixtures, error) {
	f, err := fixtureFS.Open("fixtures/sample_letters.yaml")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFixtures(f)
}
