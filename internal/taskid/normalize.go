package taskid

import "strings"

// NormalizeKind canonicalizes task kind names and their aliases, so that
// "nl-reach", "NLReach" and "reach_sim" all map to "reach". Unknown names are
// returned in normalized form.
func NormalizeKind(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalKind(candidate); ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidate := strings.TrimPrefix(normalized, "nl-")
	if candidate == normalized {
		candidate = strings.TrimPrefix(candidate, "nl")
	}
	candidate = strings.Trim(candidate, "-")

	candidates := []string{normalized}
	if candidate != "" && candidate != normalized {
		candidates = append(candidates, candidate)
	}
	if trimmed := trimSimSuffix(candidate); trimmed != "" && trimmed != candidate {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

func trimSimSuffix(value string) string {
	switch {
	case strings.HasSuffix(value, "-sim"):
		return strings.TrimSuffix(value, "-sim")
	case strings.HasSuffix(value, "sim") && !strings.Contains(value, "-"):
		return strings.TrimSuffix(value, "sim")
	default:
		return value
	}
}

func canonicalKind(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "-", "") {
	case "reach", "touch":
		return "reach", true
	case "push", "shove":
		return "push", true
	case "grasp", "grip":
		return "grasp", true
	case "lift", "pickup":
		return "lift", true
	default:
		return "", false
	}
}
