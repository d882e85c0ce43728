package record

import (
	"regexp"
	"strconv"
	"strings"
)

// RemoveSentinel, when assigned to a field, deletes it instead.
const RemoveSentinel = "__REMOVE__"

// Field names maintained by the store itself.
const (
	FieldFilename   = "filename"
	FieldLineNumber = "line_number"
	FieldWordCount  = "word_count"
	FieldTimestamp  = "timestamp"
	FieldMark       = "mark"
)

// DefaultMarkColor is used when a mark is toggled without a colour.
const DefaultMarkColor = "yellow"

var timestampRE = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)

// Record is one ingested line plus the fields derived from it.
type Record struct {
	Original string
	Fields   map[string]string
	Index    int
}

// New returns a record for line with no derived fields.
func New(line string) *Record {
	return &Record{Original: line, Fields: make(map[string]string)}
}

// Field implements query.Fields.
func (r *Record) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Line implements query.Fields.
func (r *Record) Line() string {
	return r.Original
}

// Set assigns a field. Assigning RemoveSentinel deletes the field.
func (r *Record) Set(name, value string) {
	if value == RemoveSentinel {
		delete(r.Fields, name)
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[name] = value
}

// Unset removes a field.
func (r *Record) Unset(name string) {
	delete(r.Fields, name)
}

// Marked reports whether the record carries a mark.
func (r *Record) Marked() bool {
	_, ok := r.Fields[FieldMark]
	return ok
}

// ToggleMark removes the mark when it already has color and sets it
// otherwise.
func (r *Record) ToggleMark(color string) {
	if color == "" {
		color = DefaultMarkColor
	}
	if current, ok := r.Fields[FieldMark]; ok && current == color {
		r.Unset(FieldMark)
		return
	}
	r.Set(FieldMark, color)
}

// Parse computes the built-in fields and runs each parser in order. Later
// parsers see the fields produced by earlier ones.
func (r *Record) Parse(parsers []LineParser) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Set(FieldWordCount, strconv.Itoa(len(strings.Fields(r.Original))))
	if ts := timestampRE.FindString(r.Original); ts != "" {
		r.Set(FieldTimestamp, ts)
	}
	for _, p := range parsers {
		p.Parse(r.Original, r.Fields)
	}
}

// clone copies the record header. The field map is shared so that marks and
// script updates made through a filtered view reach the full store.
func (r *Record) clone() *Record {
	dup := *r
	return &dup
}
