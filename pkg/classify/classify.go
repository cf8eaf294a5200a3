// Package classify derives tags, a scene label and candidate objects from
// a free-text image description.
//
// All three derivations are driven by a declarative Rules table and one
// matching routine: a rule fires when any of its triggers occurs as a
// substring of the lower-cased description. There is no word-boundary
// check, so a trigger inside an unrelated word still matches.
package classify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule maps a label to its trigger substrings
type Rule struct {
	Label    string   `yaml:"label"`
	Triggers []string `yaml:"triggers"`
}

// ObjectRule is an object name with the confidence reported when it is found
type ObjectRule struct {
	Name       string  `yaml:"name"`
	Confidence float64 `yaml:"confidence"`
}

// Rules is the full keyword rule set
type Rules struct {
	Tags           []Rule            `yaml:"tags"`
	ExtraTags      []Rule            `yaml:"extra_tags"`
	MaxTags        int               `yaml:"max_tags"`
	Scenes         []Rule            `yaml:"scenes"`
	FallbackScene  string            `yaml:"fallback_scene"`
	Objects        []ObjectRule      `yaml:"objects"`
	ObjectCategory string            `yaml:"object_category"`
	MaxObjects     int               `yaml:"max_objects"`
	PlaceholderBox types.BoundingBox `yaml:"placeholder_box"`
}

// DefaultRules returns the built-in rule set
func DefaultRules() *Rules {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("classify: built-in rules are invalid: %v", err))
	}
	return rules
}

// ParseRules decodes and validates a YAML rule set
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// LoadRules reads a YAML rule set from file
func LoadRules(filename string) (*Rules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// Validate checks that the rule set can classify any text
func (r *Rules) Validate() error {
	if r.FallbackScene == "" {
		return fmt.Errorf("rules: fallback_scene cannot be empty")
	}
	if r.MaxTags < 0 || r.MaxObjects < 0 {
		return fmt.Errorf("rules: max_tags and max_objects cannot be negative")
	}
	for _, group := range [][]Rule{r.Tags, r.ExtraTags, r.Scenes} {
		for _, rule := range group {
			if rule.Label == "" {
				return fmt.Errorf("rules: rule without label")
			}
			for _, t := range rule.Triggers {
				if t == "" {
					return fmt.Errorf("rules: empty trigger in %q", rule.Label)
				}
			}
		}
	}
	for _, o := range r.Objects {
		if o.Name == "" {
			return fmt.Errorf("rules: object without name")
		}
		if o.Confidence <= 0 || o.Confidence > 1 {
			return fmt.Errorf("rules: confidence of %q must be in (0,1]", o.Name)
		}
	}
	return nil
}

// Classifier applies a rule set to descriptions
type Classifier struct {
	rules *Rules
}

// New creates a Classifier with the built-in rules
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewWithRules creates a Classifier with a custom rule set
func NewWithRules(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the rule set in use
func (c *Classifier) Rules() *Rules {
	return c.rules
}

// Tags returns the labels of every tag rule that matches text, in rule
// order, without duplicates and capped at MaxTags
func (c *Classifier) Tags(text string) []string {
	lower := normalize(text)
	tags := make([]string, 0, len(c.rules.Tags)+len(c.rules.ExtraTags))
	seen := make(map[string]struct{})

	for _, group := range [][]Rule{c.rules.Tags, c.rules.ExtraTags} {
		for _, rule := range group {
			if _, dup := seen[rule.Label]; dup {
				continue
			}
			if matchesAny(lower, rule.Triggers) {
				seen[rule.Label] = struct{}{}
				tags = append(tags, rule.Label)
			}
		}
	}

	if len(tags) > c.rules.MaxTags {
		tags = tags[:c.rules.MaxTags]
	}
	return tags
}

// Scene returns the label of the first matching scene rule, or the
// fallback label when none matches
func (c *Classifier) Scene(text string) string {
	lower := normalize(text)
	for _, rule := range c.rules.Scenes {
		if matchesAny(lower, rule.Triggers) {
			return rule.Label
		}
	}
	return c.rules.FallbackScene
}

// Objects returns the object table entries named in text, in table order,
// capped at MaxObjects. Each carries the placeholder bounding box.
func (c *Classifier) Objects(text string) []types.DetectedObject {
	lower := normalize(text)
	objects := make([]types.DetectedObject, 0, c.rules.MaxObjects)

	for _, o := range c.rules.Objects {
		if len(objects) >= c.rules.MaxObjects {
			break
		}
		if !strings.Contains(lower, normalize(o.Name)) {
			continue
		}
		objects = append(objects, types.DetectedObject{
			Name:       o.Name,
			Confidence: o.Confidence,
			BBox:       c.rules.PlaceholderBox,
			Category:   c.rules.ObjectCategory,
			Heuristic:  true,
		})
	}
	return objects
}

func normalize(s string) string {
	return strings.ToLower(s)
}

// matchesAny reports whether any trigger occurs in the normalized text
func matchesAny(lower string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lower, normalize(t)) {
			return true
		}
	}
	return false
}
