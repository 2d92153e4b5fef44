package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

//go:embed groups.yaml
var defaultGroups []byte

// Group is one commodity group on the request form.
type Group struct {
	ID       string   `yaml:"id" json:"id"`
	Category string   `yaml:"category" json:"category"`
	Name     string   `yaml:"group" json:"group"`
	Keywords []string `yaml:"keywords" json:"-"`
}

type file struct {
	Groups []Group `yaml:"groups"`
}

// Catalog holds the commodity groups and classifies requests against them.
type Catalog struct {
	groups []Group
	byID   map[string]Group
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultGroups)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded groups: %v", err))
	}
	return c
}

// Load reads a catalog from path; an empty path means the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. IDs must be present and unique.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, errors.New("catalog has no groups")
	}
	c := &Catalog{byID: make(map[string]Group, len(f.Groups))}
	for _, g := range f.Groups {
		g.ID = strings.TrimSpace(g.ID)
		if g.ID == "" || strings.TrimSpace(g.Name) == "" {
			return nil, fmt.Errorf("catalog group %+v: id and group are required", g)
		}
		if _, dup := c.byID[g.ID]; dup {
			return nil, fmt.Errorf("catalog group %s: duplicate id", g.ID)
		}
		for i, k := range g.Keywords {
			g.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
		}
		c.groups = append(c.groups, g)
		c.byID[g.ID] = g
	}
	return c, nil
}

// Groups returns the groups in catalog order.
func (c *Catalog) Groups() []Group {
	return append([]Group(nil), c.groups...)
}

// Group returns the display name for id.
func (c *Catalog) Group(id string) (string, bool) {
	g, ok := c.byID[id]
	return g.Name, ok
}

// Classify scores each group by keyword hits in the title and line descriptions.
// Title hits count double. Ties go to the group listed first; no hits means no
// classification.
func (c *Catalog) Classify(title string, lines []procurement.OrderLine) (string, string, bool) {
	titleText := strings.ToLower(title)
	var lineText strings.Builder
	for _, l := range lines {
		lineText.WriteString(strings.ToLower(l.PositionDescription))
		lineText.WriteByte('\n')
	}
	body := lineText.String()

	best, bestScore := -1, 0
	for i, g := range c.groups {
		score := 0
		for _, k := range g.Keywords {
			if k == "" {
				continue
			}
			if strings.Contains(titleText, k) {
				score += 2
			}
			score += strings.Count(body, k)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return "", "", false
	}
	g := c.groups[best]
	return g.ID, g.Name, true
}
