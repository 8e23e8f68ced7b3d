package pagination

import (
	"fmt"
	"strings"

	"github.com/icse/api-cache/pkg/client"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Merge combines the pages into one JSON document.
func (r *Result) Merge() (string, error) {
	if len(r.Pages) == 0 {
		return "", &client.APIError{
			Class:   client.ErrorClassMalformedJSON,
			Message: "collection has no pages",
			Err:     client.ErrMalformedJSON,
		}
	}

	docs := make([]gjson.Result, len(r.Pages))
	for i, p := range r.Pages {
		if !gjson.Valid(p.Body) {
			return "", &client.APIError{
				Class:   client.ErrorClassMalformedJSON,
				URL:     p.URL,
				Message: fmt.Sprintf("page %d is not valid JSON", i+1),
				Err:     client.ErrMalformedJSON,
			}
		}
		docs[i] = gjson.Parse(p.Body)
	}

	if len(docs) == 1 {
		return r.Pages[0].Body, nil
	}

	switch {
	case allOf(docs, gjson.Result.IsArray):
		return mergeArrays(docs), nil
	case allOf(docs, gjson.Result.IsObject):
		return mergeObjects(r.Pages, docs)
	default:
		return "", &client.APIError{
			Class:   client.ErrorClassMalformedJSON,
			URL:     r.Pages[0].URL,
			Message: "pages mix JSON types and cannot be merged",
			Err:     client.ErrMalformedJSON,
		}
	}
}

func allOf(docs []gjson.Result, pred func(gjson.Result) bool) bool {
	for _, d := range docs {
		if !pred(d) {
			return false
		}
	}
	return true
}

// joinElements renders the elements of every array in arrays as one JSON array.
func joinElements(arrays []gjson.Result) string {
	var b strings.Builder
	b.WriteByte('[')
	n := 0
	for _, arr := range arrays {
		arr.ForEach(func(_, value gjson.Result) bool {
			if n > 0 {
				b.WriteByte(',')
			}
			b.WriteString(value.Raw)
			n++
			return true
		})
	}
	b.WriteByte(']')
	return b.String()
}

func mergeArrays(docs []gjson.Result) string {
	return joinElements(docs)
}

// mergeObjects keeps page one's members and sets every member that is an
// array on any page to the elements of that member across all pages, in
// page order. Members first seen on a later page are appended.
func mergeObjects(pages []Page, docs []gjson.Result) (string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, d := range docs {
		d.ForEach(func(key, value gjson.Result) bool {
			if name := key.String(); value.IsArray() && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			return true
		})
	}

	out := pages[0].Body
	for _, name := range names {
		path := escapePath(name)
		var arrays []gjson.Result
		for i, d := range docs {
			member := d.Get(path)
			switch {
			case !member.Exists() || member.Type == gjson.Null:
			case member.IsArray():
				arrays = append(arrays, member)
			default:
				return "", &client.APIError{
					Class:   client.ErrorClassMalformedJSON,
					URL:     pages[i].URL,
					Message: fmt.Sprintf("member %q is an array on another page but not on page %d", name, i+1),
					Err:     client.ErrMalformedJSON,
				}
			}
		}

		var err error
		out, err = sjson.SetRaw(out, path, joinElements(arrays))
		if err != nil {
			return "", fmt.Errorf("merge pages: %w", err)
		}
	}

	return out, nil
}

// escapePath escapes the characters gjson/sjson treat as path syntax so a
// member name is addressed literally.
func escapePath(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
