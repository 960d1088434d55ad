// Package parser decodes free-text LLM replies into typed actions.
//
// The reply grammar is line oriented with fixed, case-insensitive labels.
// Models decorate their output with markdown emphasis, code fences and
// heading markers, and some emit a delimited reasoning segment before the
// actual answer; decoding strips all of that first and then extracts fields.
// A reply that matches neither grammar shape decodes to a parse-failure
// value, never an error.
package parser

import (
	"regexp"
	"strings"

	"github.com/hbmon/diskdiag/pkg/model"
)

var (
	reasoningOpen  = regexp.MustCompile(`(?i)<think(?:ing)?>`)
	reasoningClose = regexp.MustCompile(`(?i)</think(?:ing)?>`)

	// number, period, text
	numberedItem = regexp.MustCompile(`^\s*\d+\.\s*(.+)$`)

	// label line: optional markup before the label, optional emphasis
	// between label and colon.
	labelLine = regexp.MustCompile("(?i)^[\\s>*#`_\\-]*([A-Z_]+)[*`_]*\\s*:\\s*(.*)$")

	fenceLine = regexp.MustCompile("^\\s*```")
)

// Conclusion-section labels whose values may span multiple lines.
const (
	labelTargetHost      = "TARGET_HOST"
	labelNextCommand     = "NEXT_COMMAND"
	labelExplanation     = "EXPLANATION"
	labelComplete        = "DIAGNOSIS_COMPLETE"
	labelRootCause       = "ROOT_CAUSE"
	labelLongTerm        = "LONG_TERM_SOLUTION"
	labelImmediate       = "IMMEDIATE_ACTIONS"
	labelPreventive      = "PREVENTIVE_MEASURES"
	labelImplementation  = "COMMANDS_TO_IMPLEMENT"
	labelFinalAnalysis   = "FINAL_ANALYSIS"       // older grammar, mapped to ROOT_CAUSE
	labelRecommendations = "RECOMMENDED_ACTIONS"  // older grammar, mapped to COMMANDS_TO_IMPLEMENT
)

// ParseReply decodes a raw LLM reply into a typed action.
func ParseReply(raw string) model.ParsedAction {
	text, ok := stripReasoning(raw)
	if !ok {
		return failure("reasoning segment consumed the entire reply")
	}

	fields := extractFields(text)

	if v, found := fields[labelComplete]; found && strings.Contains(strings.ToLower(v), "true") {
		return parseConclusion(fields)
	}

	command := strings.TrimSpace(fields[labelNextCommand])
	if command == "" {
		return failure("reply matched neither grammar shape")
	}
	return model.ParsedAction{
		Kind:        model.ActionProposeCommand,
		TargetHost:  CleanHostname(fields[labelTargetHost]),
		Command:     stripInlineMarkup(command),
		Explanation: strings.TrimSpace(fields[labelExplanation]),
	}
}

func parseConclusion(fields map[string]string) model.ParsedAction {
	rootCause := firstNonEmpty(fields[labelRootCause], fields[labelFinalAnalysis])
	if strings.TrimSpace(rootCause) == "" {
		return failure("diagnosis marked complete without a root cause")
	}

	itemsText := firstNonEmpty(fields[labelImplementation], fields[labelRecommendations])

	return model.ParsedAction{
		Kind: model.ActionConclude,
		Conclusion: &model.Conclusion{
			RootCause:          strings.TrimSpace(rootCause),
			LongTermSolution:   strings.TrimSpace(fields[labelLongTerm]),
			ImmediateActions:   strings.TrimSpace(fields[labelImmediate]),
			PreventiveMeasures: strings.TrimSpace(fields[labelPreventive]),
			Commands:           parseNumberedItems(itemsText),
		},
	}
}

// stripReasoning removes any <think>…</think> segment. An opening marker
// with no matching close means the model was cut off mid-thought; nothing
// in such a reply can be trusted as an answer, so the whole reply is
// discarded. Returns false when nothing usable is left.
func stripReasoning(text string) (string, bool) {
	for {
		open := reasoningOpen.FindStringIndex(text)
		if open == nil {
			break
		}
		rest := text[open[1]:]
		end := reasoningClose.FindStringIndex(rest)
		if end == nil {
			return "", false
		}
		text = text[:open[0]] + rest[end[1]:]
	}
	// a stray close marker means everything before it was reasoning
	if end := reasoningClose.FindStringIndex(text); end != nil {
		text = text[end[1]:]
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// extractFields walks the reply line by line and collects labeled values.
// Lines following a multi-line label (the conclusion fields) accumulate into
// that label's value until the next label appears. Code-fence lines are
// dropped.
func extractFields(text string) map[string]string {
	fields := make(map[string]string)
	current := ""

	multiline := map[string]bool{
		labelRootCause: true, labelLongTerm: true, labelImmediate: true,
		labelPreventive: true, labelImplementation: true,
		labelFinalAnalysis: true, labelRecommendations: true,
	}

	for _, line := range strings.Split(text, "\n") {
		if fenceLine.MatchString(line) {
			continue
		}
		if m := labelLine.FindStringSubmatch(line); m != nil {
			label := strings.ToUpper(m[1])
			if known(label) {
				fields[label] = stripInlineMarkup(m[2])
				if multiline[label] {
					current = label
				} else {
					current = ""
				}
				continue
			}
		}
		if current != "" {
			fields[current] += "\n" + line
		}
	}
	return fields
}

func known(label string) bool {
	switch label {
	case labelTargetHost, labelNextCommand, labelExplanation, labelComplete,
		labelRootCause, labelLongTerm, labelImmediate, labelPreventive,
		labelImplementation, labelFinalAnalysis, labelRecommendations:
		return true
	}
	return false
}

// parseNumberedItems keeps only "number, period, text" lines, in order.
// Anything else inside the section is dropped.
func parseNumberedItems(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		if m := numberedItem.FindStringSubmatch(line); m != nil {
			items = append(items, stripInlineMarkup(strings.TrimSpace(m[1])))
		}
	}
	return items
}

// CleanHostname normalizes an LLM-provided hostname: inline markup is
// stripped, then leading markup characters and trailing punctuation are
// trimmed. An empty result means the caller should fall back to the
// alerting host.
func CleanHostname(raw string) string {
	h := stripInlineMarkup(strings.TrimSpace(raw))
	h = strings.TrimLeft(h, "*#>`\"'[( ")
	if i := strings.IndexAny(h, " \t"); i >= 0 {
		h = h[:i]
	}
	return strings.TrimRight(h, ".,:;!?)]}\"'` ")
}

func stripInlineMarkup(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.Trim(s, "`")
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func failure(reason string) model.ParsedAction {
	return model.ParsedAction{Kind: model.ActionParseFailure, Reason: reason}
}
