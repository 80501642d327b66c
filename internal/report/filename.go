package report

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFilenamePrefix starts every export filename.
const DefaultFilenamePrefix = "PV-Inspection"

// UnnamedSite replaces an empty site name in export filenames.
const UnnamedSite = "unnamed-site"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// Filename builds "<prefix>_<site>_<YYYY-MM-DD>.xlsx". The site name is
// reduced to ASCII letters, digits and dashes. The date is used when it is an
// ISO date; otherwise now supplies it.
func Filename(prefix, siteName, date string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultFilenamePrefix
	}
	site := sanitizeSiteName(siteName)
	if site == "" {
		site = UnnamedSite
	}
	day := now.Format(time.DateOnly)
	if t, err := time.Parse(time.DateOnly, strings.TrimSpace(date)); err == nil {
		day = t.Format(time.DateOnly)
	}
	return prefix + "_" + site + "_" + day + ".xlsx"
}

func sanitizeSiteName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		ascii = name
	}
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(ascii, "-"), "-")
}
