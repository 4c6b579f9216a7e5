// Package convert implements the field value conversions a CopyRule applies
// when moving a value from one side of a mapping to the other (spec §4.4).
package convert

import (
	"fmt"
	"strings"

	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
)

// Ids identifies the current SCM/DTS record pair, threaded through purely so
// MAP lookup failures can be logged with both ids (spec §4.4: "tagged with
// the current SCM/DTS identifiers").
type Ids struct {
	SCMID string
	DTSID string
}

// Convert applies rule's conversion to value, which was read from the
// source side of the copy. reverse selects the MAP lookup direction: false for
// SCM→DTS/mirror-toward-DTS, true for DTS→SCM/mirror-toward-SCM.
//
// srcAdapter/dstAdapter provide the DATE conversion's extract/format pair;
// they may be nil for rule types that don't need them.
func Convert(rule *model.CopyRule, value string, reverse bool, srcAdapter, dstAdapter plugin.Adapter, ids Ids, log *logging.Logger) string {
	switch rule.Type {
	case model.CopyText:
		return stripQuotes(value)
	case model.CopyWord:
		return truncateWord(value)
	case model.CopyLine:
		return truncateLine(value)
	case model.CopyDate:
		return convertDate(value, srcAdapter, dstAdapter)
	case model.CopyMap:
		return convertMap(rule, value, reverse, ids, log)
	case model.CopyUnmap:
		// Never reached: the validator refuses to start a mapping with any
		// UNMAP rule remaining (spec §3, §4.3).
		panic(fmt.Sprintf("convert: UNMAP rule reached conversion (scm=%s dts=%s)", ids.SCMID, ids.DTSID))
	default:
		return value
	}
}

// stripQuotes implements TEXT: pass-through, but strip one outer pair of
// ASCII double quotes if the value begins with one.
func stripQuotes(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

// truncateWord implements WORD: keep the initial run up to the first
// whitespace rune.
func truncateWord(value string) string {
	for i, r := range value {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return value[:i]
		}
	}
	return value
}

// truncateLine implements LINE: keep text up to the first CR or LF.
func truncateLine(value string) string {
	if i := strings.IndexAny(value, "\r\n"); i >= 0 {
		return value[:i]
	}
	return value
}

// convertDate implements DATE: parse with the source adapter's ExtractDate,
// reformat with the target adapter's FormatDate. Empty input passes through
// as empty.
func convertDate(value string, src, dst plugin.Adapter) string {
	if value == "" {
		return ""
	}
	if src == nil || dst == nil {
		return value
	}
	t, ok := src.ExtractDate(value)
	if !ok {
		return ""
	}
	return dst.FormatDate(t)
}

// convertMap implements MAP/select lookup. Unmatched non-empty values
// produce an empty string and a logged error tagged with both ids (spec
// §4.4).
func convertMap(rule *model.CopyRule, value string, reverse bool, ids Ids, log *logging.Logger) string {
	result, ok := rule.Lookup(value, reverse)
	if !ok {
		if log != nil {
			log.Errorf("select map: no match for %q on %s->%s (scm=%s dts=%s)",
				value, rule.SCMField, rule.DTSField, ids.SCMID, ids.DTSID)
		}
		return ""
	}
	return result
}

// Normalize applies the same quote-stripping/whitespace-chomping the
// reconciler uses to decide whether a write is actually needed (spec §4.6:
// "compares normalized ... old and new values").
func Normalize(value string) string {
	return strings.TrimSpace(stripQuotes(value))
}
