// Package model defines the core domain types of the extraction pipeline:
// fingerprints, artifacts, and jobs.
package model

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Fingerprint is the sole cache key for an extraction: the tuple
// (video_id, language, clean_flag). Two fingerprints compare equal with ==.
type Fingerprint struct {
	VideoID   string
	Language  string
	CleanFlag bool
}

var (
	// ErrInvalidInput is returned when a video reference cannot be canonicalised.
	ErrInvalidInput = errors.New("invalid video reference")
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var recognisedHosts = map[string]bool{
	"youtube.com":          true,
	"www.youtube.com":      true,
	"m.youtube.com":        true,
	"youtu.be":             true,
	"youtube-nocookie.com": true,
	"www.youtube-nocookie.com": true,
}

// DefaultLanguage is used when no language is supplied.
const DefaultLanguage = "en"

// Canonicalise derives a Fingerprint from a bare video ID or a recognised
// YouTube URL shape. language defaults to DefaultLanguage when empty.
// cleanFlag defaults to true when nil.
func Canonicalise(videoRef, language string, cleanFlag *bool) (Fingerprint, error) {
	id, err := extractVideoID(videoRef)
	if err != nil {
		return Fingerprint{}, err
	}

	lang := normaliseLanguage(language)

	clean := true
	if cleanFlag != nil {
		clean = *cleanFlag
	}

	return Fingerprint{VideoID: id, Language: lang, CleanFlag: clean}, nil
}

// extractVideoID accepts a bare 11-char ID or a URL in one of the
// recognised path shapes and returns the 11-char video ID.
func extractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidInput)
	}

	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q is neither a bare id nor a URL", ErrInvalidInput, raw)
	}

	host := strings.ToLower(u.Host)
	if !recognisedHosts[host] {
		return "", fmt.Errorf("%w: unrecognised host %q", ErrInvalidInput, host)
	}

	var candidate string
	switch {
	case host == "youtu.be":
		candidate = strings.TrimPrefix(u.Path, "/")
	case u.Path == "/watch":
		candidate = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/shorts/"):
		candidate = strings.TrimPrefix(u.Path, "/shorts/")
	case strings.HasPrefix(u.Path, "/embed/"):
		candidate = strings.TrimPrefix(u.Path, "/embed/")
	case strings.HasPrefix(u.Path, "/v/"):
		candidate = strings.TrimPrefix(u.Path, "/v/")
	default:
		return "", fmt.Errorf("%w: unrecognised path shape %q", ErrInvalidInput, u.Path)
	}

	candidate = strings.SplitN(candidate, "/", 2)[0]
	if !videoIDPattern.MatchString(candidate) {
		return "", fmt.Errorf("%w: could not extract an 11-character video id from %q", ErrInvalidInput, raw)
	}

	return candidate, nil
}

// normaliseLanguage trims and lower-cases a BCP-47-ish language code,
// title-casing a four-letter second subtag (the script, e.g. zh-hans -> zh-Hans).
func normaliseLanguage(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return DefaultLanguage
	}

	parts := strings.Split(language, "-")
	for i, part := range parts {
		if i == 1 && len(part) == 4 {
			// Script subtag: title-cased (e.g. Hans); all other subtags are lower-cased.
			parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
			continue
		}
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, "-")
}

// Encode returns a stable string encoding used to derive tier cache keys.
// Equal fingerprints encode to byte-identical strings.
func (f Fingerprint) Encode() string {
	return fmt.Sprintf("%s:%s:%t", f.VideoID, f.Language, f.CleanFlag)
}

func (f Fingerprint) String() string {
	return f.Encode()
}
