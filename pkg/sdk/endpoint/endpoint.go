// Package endpoint resolves and validates the Blue Canary event URL.
//
// The URL is assembled from four parts: base_uri, api_version, uuid and
// counter. Each time parts are set, a part takes the explicit override if
// one is given, else the value it already holds, else its static default:
//
//	b := endpoint.New()
//	b.SetParts(params.Params{"uuid": id, "counter": "nightly-backup"})
//	if err := b.Validate(); err != nil { ... }
//	b.URI() // https://canary.stage/api/v1/event/<id>/nightly-backup
package endpoint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/sdk/errs"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
)

var (
	uuidPattern    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	counterPattern = regexp.MustCompile(`(?i)^[a-z0-9\-_.]{6,255}$`)
)

// partKeys lists the URI parts in path order.
var partKeys = []string{
	params.KeyBaseURI,
	params.KeyAPIVersion,
	params.KeyUUID,
	params.KeyCounter,
}

var defaults = map[string]string{
	params.KeyBaseURI:    config.DefaultBaseURI,
	params.KeyAPIVersion: config.DefaultAPIVersion,
}

// Parts is a snapshot of the resolved URI parts.
type Parts struct {
	BaseURI    string
	APIVersion string
	UUID       string
	Counter    string
}

// Builder holds the last resolved URI parts. It is not safe for concurrent
// use.
type Builder struct {
	parts map[string]*string
}

// New returns a Builder with no parts set.
func New() *Builder {
	return &Builder{parts: make(map[string]*string, len(partKeys))}
}

// SetParts resolves each URI part from overrides, the current value, then
// the static default. Values are trimmed of surrounding whitespace and
// slashes. A nil or absent override falls through; an empty string does not.
func (b *Builder) SetParts(overrides params.Params) *Builder {
	for _, key := range partKeys {
		var value string
		if v, ok := overrides[key]; ok && v != nil {
			value = fmt.Sprint(v)
		} else if cur := b.parts[key]; cur != nil {
			value = *cur
		} else {
			value = defaults[key]
		}

		value = strings.Trim(value, "/ \t\r\n")
		b.parts[key] = &value
	}
	return b
}

// Validate checks that every part is present and well formed.
func (b *Builder) Validate() error {
	for _, key := range partKeys {
		if b.get(key) == "" {
			return errs.Newf(errs.KindInvalidEndpoint, "A %s is missing.", key)
		}
	}

	if !IsUUIDValid(b.get(params.KeyUUID)) {
		return errs.New(errs.KindInvalidEndpoint, "The app uuid is invalid.")
	}

	if !IsCounterNameValid(b.get(params.KeyCounter)) {
		return errs.New(errs.KindInvalidEndpoint, "The counter name is invalid.")
	}

	if !strings.HasPrefix(b.get(params.KeyBaseURI), "http") {
		return errs.New(errs.KindInvalidEndpoint, "This protocol is not supported.")
	}

	return nil
}

// URI joins the parts into the event URL:
// <base_uri>/api/<api_version>/event/<uuid>/<counter>.
func (b *Builder) URI() string {
	return strings.Join([]string{
		b.get(params.KeyBaseURI),
		config.APIPathPrefix,
		b.get(params.KeyAPIVersion),
		config.EventPathSegment,
		b.get(params.KeyUUID),
		b.get(params.KeyCounter),
	}, "/")
}

// Parts returns the currently resolved parts.
func (b *Builder) Parts() Parts {
	return Parts{
		BaseURI:    b.get(params.KeyBaseURI),
		APIVersion: b.get(params.KeyAPIVersion),
		UUID:       b.get(params.KeyUUID),
		Counter:    b.get(params.KeyCounter),
	}
}

func (b *Builder) get(key string) string {
	if v := b.parts[key]; v != nil {
		return *v
	}
	return ""
}

// IsUUIDValid reports whether s is a version 4 UUID, in any letter case.
func IsUUIDValid(s string) bool {
	return uuidPattern.MatchString(s)
}

// IsCounterNameValid reports whether s is 6 to 255 letters, digits, '-', '_'
// or '.'.
func IsCounterNameValid(s string) bool {
	return counterPattern.MatchString(s)
}
