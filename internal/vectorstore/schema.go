package vectorstore

// inferSchema samples up to 100 points' payloads and infers a FieldKind per
// key, per spec §4.F's collection_info fallback: integer, float, bool,
// keyword, text (string longer than 256 runes), or keyword_array.
func inferSchema(points []IDPayload) map[string]FieldKind {
	out := map[string]FieldKind{}
	for _, p := range points {
		for k, v := range p.Payload {
			kind, ok := fieldKindOf(v)
			if !ok {
				continue
			}
			if _, exists := out[k]; !exists {
				out[k] = kind
			}
		}
	}
	return out
}

func fieldKindOf(v any) (FieldKind, bool) {
	switch t := v.(type) {
	case bool:
		return FieldBool, true
	case int, int32, int64:
		return FieldInteger, true
	case float32:
		return floatOrIntKind(float64(t)), true
	case float64:
		return floatOrIntKind(t), true
	case string:
		if len([]rune(t)) > 256 {
			return FieldText, true
		}
		return FieldKeyword, true
	case []any:
		return FieldKeywordArray, true
	default:
		return "", false
	}
}

func floatOrIntKind(f float64) FieldKind {
	if f == float64(int64(f)) {
		return FieldInteger
	}
	return FieldFloat
}
