// Package assets resolves celebrity names to image URLs from a directory of
// image files named after the celebrity ("tom_hanks.jpg", "tom_hanks_2.png").
package assets

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
)

const DefaultImage = "default.jpg"

// Resolver indexes the image directory once at construction.
type Resolver struct {
	baseURL      string
	defaultImage string
	files        []string
}

// NewResolver lists dir and serves URLs under baseURL. An empty dir yields a
// resolver that always answers with the default image.
func NewResolver(dir, baseURL, defaultImage string) (*Resolver, error) {
	if defaultImage == "" {
		defaultImage = DefaultImage
	}
	r := &Resolver{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultImage: defaultImage,
	}
	if dir == "" {
		return r, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r.files = append(r.files, e.Name())
	}
	sort.Strings(r.files)
	return r, nil
}

// ImageURL returns the first image whose file name starts with the normalized
// name, or the default image.
func (r *Resolver) ImageURL(name string) string {
	prefix := fileKey(name)
	if prefix != "" {
		for _, f := range r.files {
			if strings.HasPrefix(strings.ToLower(f), prefix) {
				return r.url(f)
			}
		}
	}
	return r.url(r.defaultImage)
}

func (r *Resolver) url(file string) string {
	return r.baseURL + "/" + url.PathEscape(file)
}

func fileKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
