package openfloor

import "encoding/json"

// Typed accessors used by the model decoders. They produce SchemaErrors
// carrying the full field path so malformed input can be located without
// re-parsing.

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + itoa(i) + "]"
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func requiredString(s *Structure, path, key string) (string, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return "", schemaErrorf(joinPath(path, key), nil, "required field is missing")
	}
	str, ok := v.(string)
	if !ok {
		return "", schemaErrorf(joinPath(path, key), v, "expected a string")
	}
	return str, nil
}

// optionalString returns "" when the key is absent or explicitly null.
func optionalString(s *Structure, path, key string) (string, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return "", nil
	}
	str, ok := v.(string)
	if !ok {
		return "", schemaErrorf(joinPath(path, key), v, "expected a string")
	}
	return str, nil
}

func optionalBool(s *Structure, path, key string) (bool, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, schemaErrorf(joinPath(path, key), v, "expected a boolean")
	}
	return b, nil
}

func optionalFloat(s *Structure, path, key string) (*float64, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := floatValue(v)
	if !ok {
		return nil, schemaErrorf(joinPath(path, key), v, "expected a number")
	}
	return &f, nil
}

func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func requiredStructure(s *Structure, path, key string) (*Structure, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return nil, schemaErrorf(joinPath(path, key), nil, "required field is missing")
	}
	sub, ok := v.(*Structure)
	if !ok {
		return nil, schemaErrorf(joinPath(path, key), v, "expected an object")
	}
	return sub, nil
}

func optionalStructure(s *Structure, path, key string) (*Structure, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	sub, ok := v.(*Structure)
	if !ok {
		return nil, schemaErrorf(joinPath(path, key), v, "expected an object")
	}
	return sub, nil
}

func optionalArray(s *Structure, path, key string) ([]any, error) {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, schemaErrorf(joinPath(path, key), v, "expected an array")
	}
	return arr, nil
}

func optionalStringSlice(s *Structure, path, key string) ([]string, error) {
	arr, err := optionalArray(s, path, key)
	if err != nil || arr == nil {
		return nil, err
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		str, ok := e.(string)
		if !ok {
			return nil, schemaErrorf(indexPath(joinPath(path, key), i), e, "expected a string")
		}
		out[i] = str
	}
	return out, nil
}

// restStructure collects, in original order, every key of s not named in
// known. The result is nil when nothing is left over.
func restStructure(s *Structure, known ...string) *Structure {
	if s == nil {
		return nil
	}
	skip := make(map[string]struct{}, len(known))
	for _, k := range known {
		skip[k] = struct{}{}
	}
	var extra *Structure
	s.Range(func(key string, value any) bool {
		if _, ok := skip[key]; ok {
			return true
		}
		if extra == nil {
			extra = NewStructure()
		}
		extra.Set(key, value)
		return true
	})
	return extra
}

// mergeExtra appends every key of extra onto dst.
func mergeExtra(dst, extra *Structure) {
	if extra == nil {
		return
	}
	extra.Range(func(key string, value any) bool {
		dst.Set(key, value)
		return true
	})
}
