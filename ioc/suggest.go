package ioc

import "regexp"

// Candidate patterns in priority order: URLs beat bare domains, hashes
// beat anything that happens to look alphanumeric.
var candidateRes = []*regexp.Regexp{
	regexp.MustCompile(`h(?:xx|tt)ps?://[^\s"']+`),
	regexp.MustCompile(`\b[a-fA-F0-9]{128}\b`),
	regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`),
	regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`),
	regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`),
	regexp.MustCompile(`\b(?:\d{1,3}(?:\.|\[\.\])){3}\d{1,3}\b`),
	regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b` +
		`|\b(?:[0-9a-fA-F]{1,4}:){1,6}(?::[0-9a-fA-F]{1,4}){1,6}\b` +
		`|\b(?:[0-9a-fA-F]{1,4}:){1,7}:` +
		`|::(?:[0-9a-fA-F]{1,4}:){0,5}[0-9a-fA-F]{1,4}\b`),
	regexp.MustCompile(`\b[\w.+-]+@[\w-]+(?:\.[\w-]+)+\b`),
	regexp.MustCompile(`\b[a-zA-Z0-9][a-zA-Z0-9-]*(?:(?:\.|\[\.\])[a-zA-Z0-9-]+)+\b`),
}

// Suggest extracts the most likely indicator from a sentence and returns
// it refanged. The empty string means nothing indicator-shaped was found.
func Suggest(text string) string {
	for _, re := range candidateRes {
		if m := re.FindString(text); m != "" {
			return Refang(m)
		}
	}
	return ""
}
