package record

import "testing"

func TestParse_BuiltinFields(t *testing.T) {
	rec := New("2024-01-02 03:04:05 INFO service started ok")
	rec.Parse(nil)

	if got := rec.Fields[FieldWordCount]; got != "6" {
		t.Fatalf("word_count = %q, want %q", got, "6")
	}
	if got := rec.Fields[FieldTimestamp]; got != "2024-01-02 03:04:05" {
		t.Fatalf("timestamp = %q, want %q", got, "2024-01-02 03:04:05")
	}

	plain := New("no date here")
	plain.Parse(nil)
	if _, ok := plain.Field(FieldTimestamp); ok {
		t.Fatalf("timestamp set on a line without a date")
	}
}

func TestParse_ParsersRunInOrder(t *testing.T) {
	parsers, err := ParseLineParsers([]string{"logfmt", "transform timestamp rfc3339"})
	if err != nil {
		t.Fatalf("ParseLineParsers: %v", err)
	}
	rec := New(`timestamp="2024-01-01 12:30:45" level=warn`)
	rec.Parse(parsers)
	if got := rec.Fields[FieldTimestamp]; got != "2024-01-01T12:30:45Z" {
		t.Fatalf("timestamp = %q, want %q", got, "2024-01-01T12:30:45Z")
	}
	if got := rec.Fields["level"]; got != "warn" {
		t.Fatalf("level = %q, want %q", got, "warn")
	}
}

func TestSet_RemoveSentinel(t *testing.T) {
	rec := New("x")
	rec.Set("debug_info", "some debug data")
	rec.Set("debug_info", RemoveSentinel)
	if _, ok := rec.Field("debug_info"); ok {
		t.Fatalf("field still present after RemoveSentinel")
	}

	var zero Record
	zero.Set("a", "b")
	if v, _ := zero.Field("a"); v != "b" {
		t.Fatalf("Set on zero Record = %q, want %q", v, "b")
	}
}

func TestToggleMark(t *testing.T) {
	rec := New("x")
	rec.ToggleMark("")
	if got := rec.Fields[FieldMark]; got != DefaultMarkColor {
		t.Fatalf("mark = %q, want %q", got, DefaultMarkColor)
	}
	rec.ToggleMark("red")
	if got := rec.Fields[FieldMark]; got != "red" {
		t.Fatalf("mark = %q, want %q", got, "red")
	}
	rec.ToggleMark("red")
	if rec.Marked() {
		t.Fatalf("mark still set after toggling the same colour")
	}
}
