package policy

import (
	"strings"
	"time"
)

// Directive is a single parsed Cache-Control token: a name plus an optional
// argument. A directive may legally appear more than once across multiple
// Cache-Control header lines; parsing retains every occurrence.
type Directive struct {
	Name        string
	Argument    string
	HasArgument bool
}

// CacheControl holds the merged cache directives from one or more
// Cache-Control header lines, in order of appearance.
type CacheControl struct {
	directives []Directive
}

// ParseCacheControl parses Cache-Control headers given as a slice of header
// line values. Directive names are compared case-insensitively and arguments
// are accepted in both token and quoted-string form.
func ParseCacheControl(headers []string) CacheControl {
	var directives []Directive
	for _, header := range headers {
		for _, field := range strings.Split(header, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			parts := strings.SplitN(field, "=", 2)
			d := Directive{Name: strings.ToLower(strings.TrimSpace(parts[0]))}
			if len(parts) > 1 {
				d.Argument = strings.Trim(strings.TrimSpace(parts[1]), `"`)
				d.HasArgument = true
			}
			directives = append(directives, d)
		}
	}
	return CacheControl{directives}
}

// Has reports whether the named directive is present.
func (c CacheControl) Has(name string) bool {
	for _, d := range c.directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Directives returns every occurrence of the named directive.
func (c CacheControl) Directives(name string) []Directive {
	var out []Directive
	for _, d := range c.directives {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// All returns every parsed directive in order of appearance.
func (c CacheControl) All() []Directive {
	return c.directives
}

// DeltaSeconds returns the merged value of a numeric directive along with a
// boolean indicating presence. When a directive appears more than once the
// smallest value wins, and a malformed argument collapses the value to zero:
// in both cases the most conservative reading is kept rather than the most
// permissive one.
func (c CacheControl) DeltaSeconds(name string) (time.Duration, bool) {
	merged := time.Duration(-1)
	for _, d := range c.directives {
		if d.Name != name {
			continue
		}
		val, err := parseDeltaSeconds(d.Argument)
		if err != nil {
			val = 0
		}
		if merged == -1 || val < merged {
			merged = val
		}
	}
	if merged == -1 {
		return 0, false
	}
	return merged, true
}
