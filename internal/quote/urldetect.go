package quote

import "regexp"

// urlPatterns match proposal/quote-style links. Order matters: detection
// reports matches in pattern order, then by position within the text.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://\S+proposal\S*`),
	regexp.MustCompile(`(?i)https?://\S+quote\S*`),
	regexp.MustCompile(`(?i)https?://\S+booking\S*`),
	regexp.MustCompile(`(?i)https?://\S+estimate\S*`),
	regexp.MustCompile(`(?i)https?://\S+event\S*`),
	regexp.MustCompile(`(?i)https?://\S+meeting\S*`),
	regexp.MustCompile(`(?i)https?://\S+bookmarriott\S*`),
	regexp.MustCompile(`(?i)https?://\S+marriott\S*`),
	regexp.MustCompile(`(?i)https?://\S+view/\S*`),
	regexp.MustCompile(`(?i)https?://\S+proposals/\S*`),
}

// DetectURLs scans text for candidate proposal URLs. The result is
// deduplicated, keeping the first occurrence. No I/O is performed.
func DetectURLs(text string) []string {
	var urls []string
	seen := make(map[string]struct{})
	for _, pattern := range urlPatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			urls = append(urls, m)
		}
	}
	return urls
}
