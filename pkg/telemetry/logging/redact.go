package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of a masked attribute.
const Redacted = "***"

// defaultRedactKeys are always masked, compared case-insensitively.
var defaultRedactKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
}

type redactor struct {
	keys map[string]struct{}
}

func newRedactor(extra []string) *redactor {
	r := &redactor{keys: make(map[string]struct{}, len(defaultRedactKeys)+len(extra))}
	for _, k := range defaultRedactKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extra {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	return r
}

// replaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *redactor) replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if _, ok := r.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}
