package auth

import "strings"

// TopicMatches reports whether a permission pattern covers a topic name.
// Patterns are dot-separated segments where "*" matches exactly one segment
// and "**" matches zero or more segments. Pattern and name are trimmed of
// surrounding whitespace before matching.
func TopicMatches(pattern, topic string) bool {
	pattern = strings.TrimSpace(pattern)
	topic = strings.TrimSpace(topic)
	if pattern == topic {
		return true
	}
	return matchSegments(strings.Split(pattern, "."), strings.Split(topic, "."))
}

func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	if pat[0] == "**" {
		if len(pat) == 1 {
			return true
		}
		// Either ** matches nothing here, or it swallows one more segment.
		if matchSegments(pat[1:], name) {
			return true
		}
		return len(name) > 0 && matchSegments(pat, name[1:])
	}
	if len(name) == 0 {
		return false
	}
	if pat[0] != "*" && pat[0] != name[0] {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}
