package conversation

import "strings"

// normalizeContent applies the near-duplicate comparison rules from the
// append algorithm: CRLF -> LF, NBSP -> space, collapse whitespace runs,
// trim. Two messages whose normalized content is equal are candidates for
// merging instead of appending a new message.
func normalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			if !inRun {
				b.WriteRune(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// mergeGeneratedFiles returns the union of a and b, preserving a's order
// and appending any new entries from b.
func mergeGeneratedFiles(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a))
	for _, f := range a {
		seen[f] = struct{}{}
	}
	out := append([]string(nil), a...)
	for _, f := range b {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// deriveTitle truncates content to the first 20 characters, per the first
// user message heuristic, and appends an ellipsis if it was cut.
func deriveTitle(content string) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) <= 20 {
		return string(r)
	}
	return string(r[:20]) + "…"
}
