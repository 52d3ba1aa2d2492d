// Package segment splits long text into platform sized posts.
package segment

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into segments of at most maxLen characters on word boundaries.
// Words longer than maxLen are cut at the boundary and the remainder carried into the next segment,
// so no content is dropped. Lengths are counted in runes.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		return nil
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		segments []string
		cur      strings.Builder
		curLen   int
	)
	flush := func() {
		if curLen > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, w := range words {
		wLen := utf8.RuneCountInString(w)
		for wLen > maxLen {
			flush()
			head, tail := cutRunes(w, maxLen)
			segments = append(segments, head)
			w, wLen = tail, wLen-maxLen
		}
		if wLen == 0 {
			continue
		}
		if curLen > 0 && curLen+1+wLen > maxLen {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wLen
	}
	flush()
	return segments
}

func cutRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
