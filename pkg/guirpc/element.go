package guirpc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Element is a node of a decoded reply document.
// Text holds the element's own character data with surrounding whitespace trimmed.
type Element struct {
	Name     string
	Text     string
	Children []*Element
}

// Child returns the first direct child with the given tag, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find resolves a slash-separated path of tags relative to e, following the
// first match at every step. Returns nil if any step is missing.
func (e *Element) Find(path string) *Element {
	cur := e
	for _, part := range splitPath(path) {
		cur = cur.Child(part)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// FindAll returns every element matching the slash-separated path, in
// document order. Every intermediate match is searched, not just the first.
func (e *Element) FindAll(path string) []*Element {
	if e == nil {
		return nil
	}
	level := []*Element{e}
	for _, part := range splitPath(path) {
		var next []*Element
		for _, el := range level {
			for _, c := range el.Children {
				if c.Name == part {
					next = append(next, c)
				}
			}
		}
		level = next
	}
	return level
}

// Value returns the text of the element at path. A missing element is a
// protocol error; a present but empty element yields "".
func (e *Element) Value(path string) (string, error) {
	el := e.Find(path)
	if el == nil {
		return "", protocolError(fmt.Errorf("<%s> has no <%s>", e.name(), path),
			fmt.Sprintf("Reply is missing required field '%s'", path))
	}
	return el.Text, nil
}

// Float parses the value at path as a float64.
func (e *Element) Float(path string) (float64, error) {
	s, err := e.Value(path)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, protocolError(err, fmt.Sprintf("Field '%s' is not a number", path))
	}
	return f, nil
}

// Int parses the value at path as an integer.
func (e *Element) Int(path string) (int, error) {
	s, err := e.Value(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, protocolError(err, fmt.Sprintf("Field '%s' is not an integer", path))
	}
	return n, nil
}

// Time parses the value at path as fractional Unix epoch seconds, in UTC.
func (e *Element) Time(path string) (time.Time, error) {
	f, err := e.Float(path)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return time.Time{}, protocolError(fmt.Errorf("value %v", f),
			fmt.Sprintf("Field '%s' is not a valid timestamp", path))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func (e *Element) name() string {
	if e == nil {
		return ""
	}
	return e.Name
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "./")
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}
