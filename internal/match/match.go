// Package match classifies inbound text as a supported video link.
package match

import "regexp"

// tiktokRe recognizes TikTok link variants: www.tiktok.com profile/video
// paths, vm./vt. short codes, and t. share links. The scheme is optional
// because users paste links without it.
var tiktokRe = regexp.MustCompile(`(?:https?://)?(?:www\.|vt\.|vm\.|t\.)?tiktok\.com/[^\s]+`)

// Find returns the first TikTok link in text, verbatim, and whether one
// was found. It does not validate beyond the pattern; a malformed path
// that still matches is passed along and left for resolution to reject.
func Find(text string) (string, bool) {
	m := tiktokRe.FindString(text)
	return m, m != ""
}
