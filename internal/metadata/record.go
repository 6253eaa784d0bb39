// Package metadata accumulates per-period and per-composite metadata
// rows and serializes them to CSV. Field order is insertion order, and
// one run has exactly one field set: the first record fixes the schema.
package metadata

import (
	"fmt"
	"strconv"
	"time"
)

// Record is an ordered mapping of named fields. Fields appear in the
// serialized header in the order they were first set.
type Record struct {
	fields []string
	values map[string]string
}

func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores a field value, appending the field to the order on first use.
func (r *Record) Set(field, value string) *Record {
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = value
	return r
}

func (r *Record) SetInt(field string, v int) *Record {
	return r.Set(field, strconv.Itoa(v))
}

func (r *Record) SetFloat(field string, v float64) *Record {
	return r.Set(field, strconv.FormatFloat(v, 'g', -1, 64))
}

func (r *Record) SetBool(field string, v bool) *Record {
	if v {
		return r.Set(field, "True")
	}
	return r.Set(field, "False")
}

func (r *Record) SetTime(field string, t time.Time) *Record {
	return r.Set(field, t.Format("2006-01-02 15:04:05"))
}

// Get returns the value for a field, or "" if unset.
func (r *Record) Get(field string) string { return r.values[field] }

// Fields returns the field names in insertion order.
func (r *Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Clone copies the record so a derived row (e.g. the index variant of a
// period row) can diverge without mutating the original.
func (r *Record) Clone() *Record {
	c := NewRecord()
	for _, f := range r.fields {
		c.Set(f, r.values[f])
	}
	return c
}

// row materializes the record's values in schema order.
func (r *Record) row(schema []string) ([]string, error) {
	if len(r.fields) != len(schema) {
		return nil, fmt.Errorf("record has %d fields, schema has %d", len(r.fields), len(schema))
	}
	out := make([]string, len(schema))
	for i, f := range schema {
		if r.fields[i] != f {
			return nil, fmt.Errorf("field %d is %q, schema expects %q", i, r.fields[i], f)
		}
		out[i] = r.values[f]
	}
	return out, nil
}
