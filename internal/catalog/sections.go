package catalog

import (
	"path"
	"strings"
)

// sectionDirs maps docs.python.org sections to local directory names.
var sectionDirs = map[string]string{
	"whatsnew":     "04_WHATSNEW",
	"tutorial":     "01_TUTORIAL",
	"library":      "02_LIBRARY",
	"reference":    "03_LANGUAGE_REFERENCE",
	"using":        "05_USING",
	"howto":        "06_HOWTO",
	"installing":   "07_INSTALLING",
	"distributing": "08_DISTRIBUTING",
	"extending":    "09_EXTENDING",
	"c-api":        "10_CAPI",
	"faq":          "11_FAQ",
	"license":      "12_MISC",
	"copyright":    "12_MISC",
}

const fallbackDir = "99_OTHER"

// DirForSection returns the local directory a documentation section maps to.
func DirForSection(section string) string {
	if dir, ok := sectionDirs[section]; ok {
		return dir
	}
	return fallbackDir
}

// ItemForURL builds the WorkItem for a page address relative to the source
// base URL, e.g. "library/asyncio.html". The mapping mirrors the directory
// layout of the docs tree: section directories hold one Markdown file per
// page, with nested path segments joined by underscores.
func ItemForURL(urlPath string) WorkItem {
	normalized := strings.TrimPrefix(path.Clean(strings.TrimSpace(urlPath)), "/")
	trimmed := strings.TrimSuffix(normalized, ".html")
	parts := strings.Split(trimmed, "/")

	var section, name string
	if len(parts) < 2 {
		name = parts[0]
		if name == "" {
			name = "index"
		}
		section = name
	} else {
		section = parts[0]
		name = strings.Join(parts[1:], "_")
	}

	return WorkItem{
		Key:         normalized,
		URLPath:     normalized,
		MarkdownRel: path.Join(DirForSection(section), name+".md"),
	}
}
