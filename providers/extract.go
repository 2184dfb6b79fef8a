package providers

// ExtractTokenFields applies a token extraction strategy to a decoded token
// response and returns the object token fields should be read from. The
// nested strategy falls back to the top-level response when the sub-object is
// missing or carries no access token, so a provider that answers both shapes
// still normalizes.
func ExtractTokenFields(strategy TokenExtraction, raw map[string]any) map[string]any {
	if strategy == TokenExtractionNestedUser {
		if nested, ok := raw["authed_user"].(map[string]any); ok {
			if token, ok := nested["access_token"].(string); ok && token != "" {
				return nested
			}
		}
	}
	return raw
}

// ExtractAccountInfo applies an account extraction strategy to a decoded
// token response. Strategies return an empty AccountInfo when the expected
// fields are absent.
func ExtractAccountInfo(strategy AccountExtraction, raw map[string]any) AccountInfo {
	switch strategy {
	case AccountExtractionTeam:
		team, ok := raw["team"].(map[string]any)
		if !ok {
			return AccountInfo{}
		}
		return AccountInfo{
			ID:          stringField(team, "id"),
			DisplayName: stringField(team, "name"),
		}
	case AccountExtractionWorkspace:
		return AccountInfo{
			ID:          stringField(raw, "workspace_id"),
			DisplayName: stringField(raw, "workspace_name"),
		}
	default:
		return AccountInfo{}
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
