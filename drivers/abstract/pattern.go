package abstract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/utils"
)

// defaultFieldRegex matches a field that carries no regex of its own: part of
// one path segment, as short as the rest of the pattern allows.
const defaultFieldRegex = `[^/]+?`

var fieldRegex = regexp.MustCompile(constants.PatternFieldRegex)

// Pattern is a compiled endpoint path pattern. "{name}" and "{name:regex}"
// placeholders capture fields; everything else matches literally.
type Pattern struct {
	template string
	prefix   string
	fields   []string
	re       *regexp.Regexp
}

func CompilePattern(template string) (*Pattern, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	template = strings.TrimPrefix(template, "/")

	var (
		expr   strings.Builder
		fields []string
		prefix string
		last   int
	)
	expr.WriteString("^")
	matches := fieldRegex.FindAllStringSubmatchIndex(template, -1)
	for i, m := range matches {
		literal := template[last:m[0]]
		if i == 0 {
			prefix = literal
		}
		expr.WriteString(regexp.QuoteMeta(literal))

		name := template[m[2]:m[3]]
		if utils.ExistInArray(fields, name) {
			return nil, fmt.Errorf("field %s appears twice in pattern %q", name, template)
		}
		fieldExpr := defaultFieldRegex
		if m[4] >= 0 {
			fieldExpr = template[m[4]:m[5]]
		}
		fmt.Fprintf(&expr, "(?P<%s>%s)", name, fieldExpr)
		fields = append(fields, name)
		last = m[1]
	}
	expr.WriteString(regexp.QuoteMeta(template[last:]))
	expr.WriteString("$")
	if len(matches) == 0 {
		prefix = template
	}

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %s", template, err)
	}
	return &Pattern{template: template, prefix: prefix, fields: fields, re: re}, nil
}

// Fields lists the placeholder names in pattern order.
func (p *Pattern) Fields() []string {
	return append([]string(nil), p.fields...)
}

// Prefix is the literal text before the first placeholder.
func (p *Pattern) Prefix() string {
	return p.prefix
}

// Match parses the fields out of a path relative to the dataset root.
func (p *Pattern) Match(path string) (map[string]any, bool) {
	path = strings.TrimPrefix(path, "/")
	match := p.re.FindStringSubmatch(path)
	if match == nil {
		return nil, false
	}
	fields := make(map[string]any, len(p.fields))
	for _, name := range p.fields {
		fields[name] = match[p.re.SubexpIndex(name)]
	}
	return fields, true
}

func (p *Pattern) String() string {
	return p.template
}
