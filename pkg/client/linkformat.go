package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedLink indicates a resource directory entry that does not
// start with a <uri-reference>.
var ErrMalformedLink = errors.New("malformed link entry")

// ResourceLink is one parsed entry of a link-format resource directory.
type ResourceLink struct {
	// URI is the resource path, e.g. "/sensors/temperature".
	URI string

	// ResourceTypes holds the rt attribute values.
	ResourceTypes []string

	// Interfaces holds the if attribute values.
	Interfaces []string

	// ContentFormat is the ct attribute, or -1 when absent.
	ContentFormat int

	// Title is the human-readable title attribute.
	Title string

	// Observable reports the obs flag.
	Observable bool

	// Attributes holds every other attribute verbatim; flag attributes
	// map to the empty string.
	Attributes map[string]string
}

// ParseLinkFormat parses a link-format resource directory: comma-separated
// entries of the form <uri>;attr=value;flag, with quoted values allowed to
// contain commas and semicolons.
func ParseLinkFormat(s string) ([]ResourceLink, error) {
	var links []ResourceLink
	for _, entry := range splitUnquoted(s, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		link, err := parseLinkEntry(entry)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func parseLinkEntry(entry string) (ResourceLink, error) {
	parts := splitUnquoted(entry, ';')

	uriRef := strings.TrimSpace(parts[0])
	if len(uriRef) < 2 || uriRef[0] != '<' || uriRef[len(uriRef)-1] != '>' {
		return ResourceLink{}, fmt.Errorf("%w: %q", ErrMalformedLink, entry)
	}

	link := ResourceLink{
		URI:           uriRef[1 : len(uriRef)-1],
		ContentFormat: -1,
		Attributes:    make(map[string]string),
	}

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		name, value, hasValue := strings.Cut(attr, "=")
		value = unquote(value)

		switch name {
		case "rt":
			link.ResourceTypes = strings.Fields(value)
		case "if":
			link.Interfaces = strings.Fields(value)
		case "ct":
			if ct, err := strconv.Atoi(value); err == nil {
				link.ContentFormat = ct
			}
		case "title":
			link.Title = value
		case "obs":
			link.Observable = true
		default:
			if hasValue {
				link.Attributes[name] = value
			} else {
				link.Attributes[name] = ""
			}
		}
	}
	return link, nil
}

// splitUnquoted splits s on sep, ignoring separators inside double-quoted
// sections.
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	start := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// unquote strips one level of surrounding double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
