package upstream

// Document is the generic payload tree returned by the upstream API.
// It stays at the ingest boundary: services project it into typed fields
// immediately and never thread it deeper than the mapper and relation extractor
type Document map[string]any

// Str returns the string at key or ""
func (d Document) Str(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the number at key and whether it was present
// upstream numbers decode as float64
func (d Document) Float(key string) (float64, bool) {
	if v, ok := d[key].(float64); ok {
		return v, true
	}
	return 0, false
}

// Int returns the number at key truncated to int64, 0 when absent
func (d Document) Int(key string) int64 {
	if v, ok := d[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// Bool returns the bool at key, false when absent
func (d Document) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Child returns the nested object at key, nil-safe
func (d Document) Child(key string) Document {
	if v, ok := d[key].(map[string]any); ok {
		return Document(v)
	}
	return nil
}

// Slice returns the array of objects at key; non-object elements are skipped
func (d Document) Slice(key string) []Document {
	raw, ok := d[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

// Dig walks nested objects by keys and returns the final Document, nil when any hop is absent
func (d Document) Dig(keys ...string) Document {
	cur := d
	for _, k := range keys {
		cur = cur.Child(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ID returns the upstream entity id (mal_id), 0 when absent
func (d Document) ID() int64 { return d.Int("mal_id") }
