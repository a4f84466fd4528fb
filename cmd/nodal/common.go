package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nodalgraph/nodal/pkg/config"
	"github.com/nodalgraph/nodal/pkg/convert"
	"github.com/nodalgraph/nodal/pkg/engine"
	"github.com/nodalgraph/nodal/pkg/model"
)

// openDB opens the database at path for reading and writing, creating it if
// it does not already exist.
func openDB(path string) (*engine.DB, error) {
	opts := config.Defaults()
	return engine.Open(path, opts)
}

// openReadOnly opens the database without allowing writes, failing if it
// does not already exist.
func openReadOnly(path string) (*engine.DB, error) {
	opts := config.Defaults()
	opts.ReadOnly = true
	opts.CreateIfMissing = false
	return engine.Open(path, opts)
}

// parseProp splits a "key=value" CLI argument, JSON-decoding value so
// "age=42" becomes an int64 property and "name=\"alice\"" (or a bare
// "alice") becomes a string one.
func parseProp(s string) (key string, val model.PropValue, err error) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return "", model.PropValue{}, fmt.Errorf("malformed --prop %q, want key=value", s)
	}
	key, raw := s[:idx], s[idx+1:]

	var decoded interface{}
	if jsonErr := json.Unmarshal([]byte(raw), &decoded); jsonErr != nil {
		decoded = raw // not valid JSON: treat the whole thing as a string
	}
	pv, ok := convert.ToPropValue(decoded)
	if !ok {
		return "", model.PropValue{}, fmt.Errorf("--prop %q: unsupported value", s)
	}
	return key, pv, nil
}

// parseVector parses a comma-separated list of floats into a vector
// property, e.g. "0.1,0.2,0.3".
func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveLabels resolves (registering if needed) a comma-separated label
// list into label IDs.
func resolveLabels(db *engine.DB, csv string) ([]model.LabelID, error) {
	names := splitCSV(csv)
	ids := make([]model.LabelID, 0, len(names))
	for _, name := range names {
		id, err := db.GetOrCreateLabel(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveProps resolves a list of "key=value" flags into a property map,
// registering each key name against the schema as needed.
func resolveProps(db *engine.DB, raw []string) (map[model.PropKeyID]model.PropValue, error) {
	out := make(map[model.PropKeyID]model.PropValue, len(raw))
	for _, r := range raw {
		name, val, err := parseProp(r)
		if err != nil {
			return nil, err
		}
		id, err := db.GetOrCreatePropKey(name)
		if err != nil {
			return nil, err
		}
		out[id] = val
	}
	return out, nil
}

// formatProps renders a resolved property map back to name=value form for
// human-readable output.
func formatProps(db *engine.DB, props map[model.PropKeyID]model.PropValue) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for id, v := range props {
		name, ok := db.PropKeyName(id)
		if !ok {
			name = fmt.Sprintf("#%d", id)
		}
		out[name] = convert.FromPropValue(v)
	}
	return out
}

func formatLabels(db *engine.DB, labels []model.LabelID) []string {
	out := make([]string, 0, len(labels))
	for _, id := range labels {
		name, ok := db.LabelName(id)
		if !ok {
			name = fmt.Sprintf("#%d", id)
		}
		out = append(out, name)
	}
	return out
}

func printJSON(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}
