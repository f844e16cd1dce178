package events

import (
	re2 "github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"
)

// frontmatterRe captures the YAML block delimited by --- lines at the top of
// a note.
var frontmatterRe = re2.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*(\n|\z)`)

// Reminder is one advance notification attached to a scheduled note.
type Reminder struct {
	MinutesBefore int    `yaml:"minutesBefore"`
	Message       string `yaml:"message"`
}

// frontmatter is the subset of note metadata the engine cares about.
type frontmatter struct {
	Schedule  string     `yaml:"schedule"`
	Message   string     `yaml:"message"`
	Title     string     `yaml:"title"`
	Reminders []Reminder `yaml:"reminders"`
}

// parseFrontmatter extracts the frontmatter block from note content. A
// missing or unparseable block yields ok=false; that is a skip, not an error.
func parseFrontmatter(content string) (frontmatter, bool) {
	m := frontmatterRe.FindStringSubmatch(content)
	if m == nil {
		return frontmatter{}, false
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return frontmatter{}, false
	}
	return fm, true
}
