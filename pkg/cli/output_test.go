package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type aliasTable struct {
	rows [][]string
}

func (a aliasTable) Header() []string { return []string{"ALIAS", "INTERNAL ID"} }
func (a aliasTable) Rows() [][]string { return a.rows }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	table := aliasTable{rows: [][]string{
		{"conv-42", "t_987"},
		{"a-much-longer-alias", "t_1"},
	}}

	if err := NewFormatter(FormatText).FormatTo(&buf, table); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	col := strings.Index(lines[0], "INTERNAL ID")
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line[col:], "t_") {
			t.Errorf("column not aligned in %q", line)
		}
	}
}

func TestTextFormatter_Value(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, "2 aliases"); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}
	if buf.String() != "2 aliases\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"alias": "conv-42", "note": "<a&b>"}

	if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
		t.Fatalf("FormatTo: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"alias\"") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "<a&b>") {
		t.Errorf("html should not be escaped: %s", buf.String())
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}
