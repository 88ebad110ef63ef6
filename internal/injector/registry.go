package injector

import (
	"slices"
	"strings"
)

// ExtPlaceholder is replaced with the tag key in marker patterns.
const ExtPlaceholder = "{{ext}}"

// SourceEntry is one file registered for injection.
type SourceEntry struct {
	OriginalPath   string `json:"original_path" yaml:"original_path"`
	NormalizedPath string `json:"normalized_path" yaml:"normalized_path"`
	Rendered       string `json:"rendered" yaml:"rendered"`
}

// Tag is an injection point identified by its rendered start marker.
type Tag struct {
	Key         string
	StartMarker string
	EndMarker   string
	Entries     []SourceEntry
}

// Registry groups source entries into tags for a single run. It is not safe
// for concurrent use and must not outlive the run that created it.
type Registry struct {
	startPattern string
	endPattern   string
	compare      Comparator

	tags  map[string]*Tag
	order []string
}

// NewRegistry creates an empty registry. compare may be nil to keep
// discovery order.
func NewRegistry(startPattern, endPattern string, compare Comparator) *Registry {
	return &Registry{
		startPattern: startPattern,
		endPattern:   endPattern,
		compare:      compare,
		tags:         make(map[string]*Tag),
	}
}

// Add registers a file under the tag derived from prefix and the extension
// of originalPath, creating the tag on first use.
func (r *Registry) Add(prefix, originalPath, normalizedPath, rendered string) *Tag {
	tag := r.lookup(prefix + extensionOf(originalPath))
	tag.Entries = append(tag.Entries, SourceEntry{
		OriginalPath:   originalPath,
		NormalizedPath: normalizedPath,
		Rendered:       rendered,
	})

	return tag
}

func (r *Registry) lookup(key string) *Tag {
	start := strings.Replace(r.startPattern, ExtPlaceholder, key, 1)
	if tag, ok := r.tags[start]; ok {
		return tag
	}

	tag := &Tag{
		Key:         key,
		StartMarker: start,
		EndMarker:   strings.Replace(r.endPattern, ExtPlaceholder, key, 1),
	}
	r.tags[start] = tag
	r.order = append(r.order, start)

	return tag
}

// Len returns the number of distinct tags.
func (r *Registry) Len() int {
	return len(r.order)
}

// Tags returns the tags in creation order. When a comparator is configured
// each tag's entries are stable-sorted by original path.
func (r *Registry) Tags() []*Tag {
	tags := make([]*Tag, 0, len(r.order))
	for _, key := range r.order {
		tag := r.tags[key]
		if r.compare != nil {
			slices.SortStableFunc(tag.Entries, func(a, b SourceEntry) int {
				return r.compare(a.OriginalPath, b.OriginalPath)
			})
		}
		tags = append(tags, tag)
	}

	return tags
}
