package sfo

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is either a string or an unsigned 32-bit integer.
type Value struct {
	Format DataFormat
	Str    string
	Int    uint32
}

// StringValue builds a terminated UTF-8 value.
func StringValue(s string) Value {
	return Value{Format: FormatUTF8, Str: s}
}

// IntValue builds an int32-format value.
func IntValue(v uint32) Value {
	return Value{Format: FormatInt32, Int: v}
}

// IsInt reports whether the value was declared as an integer.
func (v Value) IsInt() bool {
	return v.Format == FormatInt32
}

func (v Value) String() string {
	if v.IsInt() {
		return strconv.FormatUint(uint64(v.Int), 10)
	}
	return v.Str
}

// MarshalYAML emits integers as YAML ints and everything else as strings.
func (v Value) MarshalYAML() (interface{}, error) {
	if v.IsInt() {
		return v.Int, nil
	}
	return v.Str, nil
}

// Entry is one decoded key/value pair.
type Entry struct {
	Key   string
	Value Value
}

// Table is the ordered content of a parameter file. Keys are expected to be
// unique but duplicates are kept in file order.
type Table struct {
	Version string
	entries []Entry
}

// NewTable returns an empty table with the given version string.
func NewTable(version string) *Table {
	return &Table{Version: version}
}

// Append adds a pair at the end of the table.
func (t *Table) Append(key string, value Value) {
	t.entries = append(t.entries, Entry{Key: key, Value: value})
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns the pairs in file order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Keys returns the keys in file order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the value for key. On duplicate keys the last one wins.
func (t *Table) Get(key string) (Value, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Key == key {
			return t.entries[i].Value, true
		}
	}
	return Value{}, false
}

// Duplicates lists keys that occur more than once, in first-seen order.
func (t *Table) Duplicates() []string {
	seen := make(map[string]int, len(t.entries))
	var dups []string
	for _, e := range t.entries {
		seen[e.Key]++
		if seen[e.Key] == 2 {
			dups = append(dups, e.Key)
		}
	}
	return dups
}

// String renders the version line followed by one "key: value" line per
// entry, each terminated by a newline.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString("SFO Version: ")
	b.WriteString(t.Version)
	b.WriteByte('\n')
	for _, e := range t.entries {
		b.WriteString(e.Key)
		b.WriteString(": ")
		b.WriteString(e.Value.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// MarshalYAML keeps file order by emitting the entries as an ordered mapping.
func (t *Table) MarshalYAML() (interface{}, error) {
	entries := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range t.entries {
		var value yaml.Node
		if err := value.Encode(e.Value); err != nil {
			return nil, err
		}
		entries.Content = append(entries.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
			&value)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "version"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.Version},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "entries"},
			entries,
		},
	}, nil
}
