package summarizer

import (
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// boundaryLength is how many characters of each end feed the fingerprint.
const boundaryLength = 50

// Group is an ordered run of unique chunk contents summarized in one call.
type Group []string

// Text joins the group's chunks with blank lines.
func (g Group) Text() string {
	return strings.Join(g, "\n\n")
}

// Length is the total character count of the group's chunks.
func (g Group) Length() int {
	n := 0
	for _, c := range g {
		n += utf8.RuneCountInString(c)
	}
	return n
}

// Fingerprint hashes the first and last 50 characters of content. Distinct
// chunks sharing both boundaries collide; that is accepted.
func Fingerprint(content string) uint64 {
	r := []rune(content)
	head := r[:min(boundaryLength, len(r))]
	tail := r[max(0, len(r)-boundaryLength):]

	d := xxhash.New()
	_, _ = d.WriteString(string(head))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(tail))
	return d.Sum64()
}

// ExactFingerprint hashes the whole content.
func ExactFingerprint(content string) uint64 {
	return xxhash.Sum64String(content)
}

// Dedup keeps the first chunk seen per fingerprint, in input order.
func Dedup(chunks []string, exact bool) []string {
	fp := Fingerprint
	if exact {
		fp = ExactFingerprint
	}
	seen := make(map[uint64]struct{}, len(chunks))
	unique := make([]string, 0, len(chunks))
	for _, c := range chunks {
		h := fp(c)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

// Partition packs chunks in order into groups of at most maxLength
// characters. A chunk longer than maxLength gets a group of its own.
func Partition(chunks []string, maxLength int) []Group {
	var groups []Group
	var current Group
	currentLen := 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c)
		if len(current) > 0 && currentLen+n > maxLength {
			groups = append(groups, current)
			current, currentLen = nil, 0
		}
		current = append(current, c)
		currentLen += n
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// Prepare deduplicates chunks and partitions the rest. Three or fewer
// unique chunks always form a single group.
func Prepare(chunks []string, maxLength int, exact bool) []Group {
	unique := Dedup(chunks, exact)
	if len(unique) == 0 {
		return nil
	}
	if len(unique) <= 3 {
		return []Group{unique}
	}
	return Partition(unique, maxLength)
}
