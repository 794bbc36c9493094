package project

import (
	"log/slog"
	"strings"

	"github.com/itchyny/gojq"
)

// titleQuery looks for a title in the places project metadata is known to
// carry one. The first non-empty string wins.
const titleQuery = `first(.meta.title?, .info.title?, .title? | select(type == "string" and length > 0)) // ""`

var titleCode = mustCompile(titleQuery)

func mustCompile(src string) *gojq.Code {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(err)
	}
	return code
}

// extractTitle never fails: anything unexpected yields "".
func extractTitle(doc map[string]any) string {
	iter := titleCode.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return ""
	}
	if err, ok := v.(error); ok {
		slog.Debug("Title extraction failed", "error", err)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
