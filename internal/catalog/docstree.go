package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FromDocsTree enumerates the translate/render catalog from Markdown files
// already present under root. README files and dotfiles are excluded. Items
// are keyed and ordered by their slash-separated relative path, so the same
// tree always yields the same catalog.
func FromDocsTree(root string) ([]WorkItem, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("docs tree: %w", err)
	}

	var items []WorkItem
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
			return nil
		}
		if strings.EqualFold(name, "README.md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		items = append(items, WorkItem{Key: rel, MarkdownRel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate docs tree: %w", err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// ItemForMarkdown builds the WorkItem for a Markdown path relative to the
// docs root, as recorded in translate/render state files.
func ItemForMarkdown(rel string) WorkItem {
	rel = filepath.ToSlash(strings.TrimSpace(rel))
	return WorkItem{Key: rel, MarkdownRel: rel}
}
