// Package merge implements the content merge strategies used by
// restore operations. Every strategy is a pure function of the
// existing target bytes and the source payload, so planners can
// compute the post-merge result without writing anything.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/ini.v1"
)

// Strategy selects how source content is combined with an existing
// target file.
type Strategy string

const (
	// StrategyCopy overwrites the target with the source bytes.
	StrategyCopy Strategy = "copy"

	// StrategyJSON structurally merges source JSON over target JSON,
	// preserving keys the source does not touch.
	StrategyJSON Strategy = "merge-json"

	// StrategyINI merges source INI sections/keys over target INI,
	// preserving untouched keys.
	StrategyINI Strategy = "merge-ini"

	// StrategyAppend appends the source block if it is not already
	// present in the target.
	StrategyAppend Strategy = "append"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyCopy, StrategyJSON, StrategyINI, StrategyAppend:
		return true
	}
	return false
}

// Apply returns the bytes the target should hold after merging source
// into existing. A nil existing means the target file does not exist.
// Apply is deterministic and idempotent: Apply(s, Apply(s, e, src), src)
// equals Apply(s, e, src) for every strategy.
func Apply(s Strategy, existing, source []byte) ([]byte, error) {
	switch s {
	case StrategyCopy:
		return source, nil
	case StrategyJSON:
		return mergeJSON(existing, source)
	case StrategyINI:
		return mergeINI(existing, source)
	case StrategyAppend:
		return mergeAppend(existing, source), nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// mergeJSON decodes both documents into generic maps, overlays source
// onto existing, and re-encodes with stable key ordering. The target
// is normalized on first merge, which keeps subsequent merges stable.
func mergeJSON(existing, source []byte) ([]byte, error) {
	var src map[string]any
	if err := json.Unmarshal(source, &src); err != nil {
		return nil, fmt.Errorf("source is not a JSON object: %w", err)
	}

	var dst map[string]any
	if len(bytes.TrimSpace(existing)) == 0 {
		dst = map[string]any{}
	} else if err := json.Unmarshal(existing, &dst); err != nil {
		return nil, fmt.Errorf("target is not a JSON object: %w", err)
	}

	merged := overlay(dst, src)

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// overlay deep-merges src into dst. Nested objects merge recursively;
// every other value type is replaced by the source value.
func overlay(dst, src map[string]any) map[string]any {
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = overlay(dm, sm)
				continue
			}
		}
		dst[k] = sv
	}
	return dst
}

// mergeINI overlays source sections and keys onto the existing INI
// document. Untouched sections and keys survive; output formatting is
// normalized by the INI writer, so repeated merges are stable.
func mergeINI(existing, source []byte) ([]byte, error) {
	if existing == nil {
		existing = []byte{}
	}

	dst, err := ini.Load(existing)
	if err != nil {
		return nil, fmt.Errorf("target is not valid INI: %w", err)
	}
	src, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("source is not valid INI: %w", err)
	}

	for _, section := range src.Sections() {
		dstSection := dst.Section(section.Name())
		for _, key := range section.Keys() {
			dstSection.Key(key.Name()).SetValue(key.Value())
		}
	}

	var buf bytes.Buffer
	if _, err := dst.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// mergeAppend adds the source block to the end of the target unless the
// target already contains it.
func mergeAppend(existing, source []byte) []byte {
	if bytes.Contains(existing, bytes.TrimSpace(source)) {
		return existing
	}
	if len(existing) == 0 {
		return source
	}
	out := existing
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return append(out, source...)
}
