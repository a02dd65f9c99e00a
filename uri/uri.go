// Package uri provides a minimal flag.Value-compatible URI type for
// repeatable --store CLI flags, in the shape of a scheme://authority/path
// registration target.
package uri

import "strings"

// List accumulates repeated --store=... flag values.
type List []URI

// implement the flag.Value interface for List
func (l *List) Set(value string) error {
	if value == "" {
		return nil
	}
	*l = append(*l, New(value))
	return nil
}

// String() returns the URIs as a comma-separated string.
func (l List) String() string {
	if len(l) == 0 {
		return ""
	}
	result := make([]string, len(l))
	for i, u := range l {
		result[i] = u.String()
	}
	return strings.Join(result, ",")
}

func New(uri string) URI {
	return URI(uri)
}

// URI is a raw scheme://authority/path registration target, parsed and
// validated by registry.Registry.Register.
type URI string

// String() returns the URI as a string.
func (u URI) String() string {
	return string(u)
}

// IsZero returns true if the URI is empty.
func (u URI) IsZero() bool {
	return u == ""
}

// IsValid returns true if the URI is not empty and is a recognized form.
func (u URI) IsValid() bool {
	if u.IsZero() {
		return false
	}
	return u.IsFile() || u.IsWeb()
}

// IsFile returns true if the URI is a local file or directory.
func (u URI) IsFile() bool {
	return (len(u) > 7 && u[:7] == "file://") || (len(u) > 1 && u[0] == '/')
}

// IsWeb returns true if the URI is a remote web URI (HTTP or HTTPS).
func (u URI) IsWeb() bool {
	// http:// or https://
	return len(u) > 7 && u[:7] == "http://" || len(u) > 8 && u[:8] == "https://"
}
