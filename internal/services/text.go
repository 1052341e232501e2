package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Text limits, in code points after normalization.
const (
	MaxReasonLength      = 50
	MaxChatroomNameLen   = 30
	MaxChatroomDescLen   = 100
	MaxFriendAliasLength = 32
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeText collapses whitespace runs to one space, trims the edges and
// applies Unicode NFC so equal-looking strings compare and count equally.
func normalizeText(s string) string {
	s = whitespaceRE.ReplaceAllString(s, " ")
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeReason returns the stored form of a free-text reason: nil when
// absent or blank, ErrReasonTooLong past MaxReasonLength code points.
func normalizeReason(in *string) (*string, error) {
	return normalizeOptional(in, MaxReasonLength, ErrReasonTooLong)
}

func normalizeOptional(in *string, max int, tooLong error) (*string, error) {
	if in == nil {
		return nil, nil
	}
	s := normalizeText(*in)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > max {
		return nil, tooLong
	}
	return &s, nil
}
