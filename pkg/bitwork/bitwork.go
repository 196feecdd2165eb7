// Package bitwork implements the prefix difficulty used by proof-of-work
// N20 tokens. A candidate is mined when the leading characters of its
// hex commitment hash equal the target string exactly.
package bitwork

import (
	"fmt"
	"strings"
)

// Target is a required hex prefix of a commitment hash.
type Target string

// ParseTarget validates s as a lowercase hex prefix.
func ParseTarget(s string) (Target, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("bitwork %q: invalid hex character %q", s, c)
		}
	}
	return Target(s), nil
}

// String returns the prefix.
func (t Target) String() string { return string(t) }

// Bytes returns the canonical byte encoding of the target, as stored in
// contract records.
func (t Target) Bytes() []byte { return []byte(t) }

// Matches reports whether digest satisfies the target.
func (t Target) Matches(digest string) bool { return Match(digest, string(t)) }

// Match reports whether the first len(target) characters of digest equal
// target. The comparison is exact and case-sensitive; it is not a numeric
// threshold. An empty target matches every digest.
func Match(digest, target string) bool {
	return strings.HasPrefix(digest, target)
}
