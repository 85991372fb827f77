package model

import (
	"errors"
	"log/slog"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigErrorDetail is one leaf of a schema validation error.
type ConfigErrorDetail struct {
	Path    string // pool.timeout
	Keyword string // /properties/pool/properties/timeout/pattern
	Message string
}

func (c ConfigErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("path", c.Path),
		slog.String("keyword", c.Keyword),
		slog.String("message", c.Message),
	)
}

func (c ConfigErrorDetail) String() string {
	if c.Path == "" {
		return c.Message
	}
	return c.Path + ": " + c.Message
}

// ConfigErrDetails flattens a validation error returned by LoadConfig. Any
// other error yields a single detail with its message.
func ConfigErrDetails(err error) []ConfigErrorDetail {
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []ConfigErrorDetail{{Message: err.Error()}}
	}
	var ret []ConfigErrorDetail
	collect(ve, &ret)
	return ret
}

func collect(ve *jsonschema.ValidationError, ret *[]ConfigErrorDetail) {
	if len(ve.Causes) == 0 {
		*ret = append(*ret, ConfigErrorDetail{
			Path:    instancePath(ve.InstanceLocation),
			Keyword: ve.KeywordLocation,
			Message: ve.Message,
		})
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, ret)
	}
}

// instancePath turns a JSON pointer /pool/timeout into pool.timeout
func instancePath(pointer string) string {
	return strings.ReplaceAll(strings.TrimPrefix(pointer, "/"), "/", ".")
}
