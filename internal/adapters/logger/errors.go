package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// messager describes an error that can report its own message without the
// chain, as zerr.Error and the domain sentinels do.
type messager interface {
	Message() string
}

type metadataer interface {
	Metadata() map[string]any
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries flattens err into one entry per message. Wrappers with
// an empty message only carry metadata; it is attached to the next entry.
// Joined errors contribute the entries of each branch in order.
func collectErrorEntries(err error) []ErrorEntry {
	var (
		entries []ErrorEntry
		carried map[string]any
	)

	add := func(e ErrorEntry) {
		if len(carried) > 0 {
			if e.Metadata == nil {
				e.Metadata = make(map[string]any, len(carried))
			}
			for k, v := range carried {
				if _, ok := e.Metadata[k]; !ok {
					e.Metadata[k] = v
				}
			}
			carried = nil
		}
		entries = append(entries, e)
	}

	current := err
	for current != nil {
		if joined, ok := current.(interface{ Unwrap() []error }); ok {
			for _, branch := range joined.Unwrap() {
				for _, e := range collectErrorEntries(branch) {
					add(e)
				}
			}
			break
		}

		m, ok := current.(messager)
		if !ok {
			add(ErrorEntry{Message: current.Error()})
			break
		}

		var meta map[string]any
		if md, ok := current.(metadataer); ok {
			meta = md.Metadata()
		}
		if m.Message() == "" {
			if carried == nil {
				carried = make(map[string]any, len(meta))
			}
			maps.Copy(carried, meta)
		} else {
			add(ErrorEntry{Message: m.Message(), Metadata: meta})
		}
		current = errors.Unwrap(current)
	}
	return entries
}

// formatErrorEntries renders entries as "Error: ..." followed by a
// "Caused by:" list. Metadata is printed below its message, sorted by key.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string

	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")

		var first, indent string
		if i == 0 {
			first, indent = "Error: ", "       "
		} else {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			first, indent = "    → ", "      "
		}

		lines = append(lines, first+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, key := range slices.Sorted(maps.Keys(entry.Metadata)) {
			lines = append(lines, indent+key+": "+formatValue(entry.Metadata[key]))
		}
	}

	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch v := v.(type) {
	case []string:
		return strings.Join(v, ", ")
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
