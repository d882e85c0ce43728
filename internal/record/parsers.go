package record

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LineParser extracts fields from a raw line into fields.
type LineParser interface {
	Parse(line string, fields map[string]string)
}

// InvalidParserError reports an extractor specification that cannot be
// built.
type InvalidParserError struct {
	Spec string
	Err  error
}

func (e *InvalidParserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid parser %q: %v", e.Spec, e.Err)
	}
	return fmt.Sprintf("invalid parser %q", e.Spec)
}

func (e *InvalidParserError) Unwrap() error { return e.Err }

// ParseLineParser builds a parser from its textual specification:
//
//	logfmt
//	regex <expression>
//	pattern <dsl>
//	csv
//	autodatetime
//	transform timestamp iso8601|rfc3339
func ParseLineParser(spec string) (LineParser, error) {
	kind, rest, _ := strings.Cut(strings.TrimSpace(spec), " ")
	switch kind {
	case "logfmt":
		return logfmtParser{}, nil
	case "regex":
		if rest == "" {
			return nil, &InvalidParserError{Spec: spec}
		}
		re, err := regexp.Compile(rest)
		if err != nil {
			return nil, &InvalidParserError{Spec: spec, Err: err}
		}
		return &regexParser{re: re}, nil
	case "pattern":
		if rest == "" {
			return nil, &InvalidParserError{Spec: spec}
		}
		re, err := regexp.Compile(PatternToRegexp(rest))
		if err != nil {
			return nil, &InvalidParserError{Spec: spec, Err: err}
		}
		return &regexParser{re: re}, nil
	case "csv":
		return &csvParser{}, nil
	case "autodatetime":
		return autoDatetimeParser{now: time.Now}, nil
	case "transform":
		switch rest {
		case "timestamp iso8601", "timestamp rfc3339":
			return timestampTransform{now: time.Now}, nil
		}
		return nil, &InvalidParserError{Spec: spec}
	default:
		return nil, &InvalidParserError{Spec: spec}
	}
}

// ParseLineParsers builds every spec, stopping at the first failure.
func ParseLineParsers(specs []string) ([]LineParser, error) {
	parsers := make([]LineParser, 0, len(specs))
	for _, spec := range specs {
		p, err := ParseLineParser(spec)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, p)
	}
	return parsers, nil
}

// PatternToRegexp translates the pattern DSL into an anchored regular
// expression. <name> becomes a non-greedy named group, <_> and <> become
// unnamed groups, and every other character matches literally.
func PatternToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	var name strings.Builder
	inName := false
	for _, c := range pattern {
		switch {
		case c == '<':
			inName = true
			name.Reset()
		case c == '>' && inName:
			inName = false
			if n := name.String(); n != "" && n != "_" {
				fmt.Fprintf(&b, "(?P<%s>.*?)", n)
			} else {
				b.WriteString("(.*?)")
			}
		case inName:
			name.WriteRune(c)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}

var logfmtRE = regexp.MustCompile(`(?P<key>[^ ]*?)=(?P<value>".*?"|[^ ]*)( |$)`)

type logfmtParser struct{}

func (logfmtParser) Parse(line string, fields map[string]string) {
	for _, m := range logfmtRE.FindAllStringSubmatch(line, -1) {
		key, value := m[1], m[2]
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		fields[key] = value
	}
}

type regexParser struct {
	re *regexp.Regexp
}

func (p *regexParser) Parse(line string, fields map[string]string) {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return
	}
	for i, name := range p.re.SubexpNames() {
		if name == "" || strings.HasPrefix(name, "_") {
			continue
		}
		fields[name] = m[i]
	}
}

type autoDatetimeParser struct {
	now func() time.Time
}

func (p autoDatetimeParser) Parse(_ string, fields map[string]string) {
	if _, ok := fields[FieldTimestamp]; ok {
		return
	}
	fields[FieldTimestamp] = p.now().UTC().Format(time.RFC3339)
}

// csvParser learns its header and separator from the first line it sees.
type csvParser struct {
	mu        sync.Mutex
	headers   []string
	separator rune
}

func (p *csvParser) Parse(line string, fields map[string]string) {
	p.mu.Lock()
	if p.separator == 0 {
		p.separator = ','
		if i := strings.IndexAny(line, ",;"); i >= 0 {
			p.separator = rune(line[i])
		}
	}
	sep := p.separator
	parts := splitCSV(line, sep)
	if p.headers == nil {
		p.headers = parts
		p.mu.Unlock()
		return
	}
	headers := p.headers
	p.mu.Unlock()

	for i, part := range parts {
		key := fmt.Sprintf("header_%d", i)
		if i < len(headers) {
			key = headers[i]
		}
		fields[key] = part
	}
}

func splitCSV(line string, sep rune) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	for _, c := range line {
		switch {
		case c == '"' && !escaped:
			quoted = !quoted
		case c == sep && !quoted && !escaped:
			parts = append(parts, current.String())
			current.Reset()
		case c == '\\' && !quoted && !escaped:
			escaped = true
		default:
			escaped = false
			current.WriteRune(c)
		}
	}
	return append(parts, current.String())
}

// timestampTransform rewrites the timestamp field as RFC 3339 when it is in
// one of the common log formats. Unknown formats are left untouched.
type timestampTransform struct {
	now func() time.Time
}

var timestampLayouts = []struct {
	layout string
	utc    bool
}{
	{time.RFC3339Nano, false},
	{"02/Jan/2006:15:04:05 -0700", false},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04:05", true},
}

func (p timestampTransform) Parse(_ string, fields map[string]string) {
	ts, ok := fields[FieldTimestamp]
	if !ok {
		return
	}
	if normalized, ok := NormalizeTimestamp(ts, p.now()); ok {
		fields[FieldTimestamp] = normalized
	}
}

// NormalizeTimestamp converts ts to RFC 3339. Syslog timestamps, which carry
// no year, take the year from now.
func NormalizeTimestamp(ts string, now time.Time) (string, bool) {
	for _, l := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if l.utc {
			t, err = time.ParseInLocation(l.layout, ts, time.UTC)
		} else {
			t, err = time.Parse(l.layout, ts)
		}
		if err == nil {
			return t.Format(time.RFC3339), true
		}
	}
	if t, err := time.ParseInLocation(time.Stamp, ts, time.UTC); err == nil {
		t = t.AddDate(now.Year()-t.Year(), 0, 0)
		return t.Format(time.RFC3339), true
	}
	return "", false
}
