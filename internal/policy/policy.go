package policy

import (
	"fmt"
	"strings"

	"github.com/sandevgo/opsbot/internal/core"
)

// Policy decides whether a tool call may execute. Check runs before the
// handler; a denial means the handler is never invoked.
type Policy interface {
	Check(name string, args string) error
}

// Rule denies a call when any Deny substring appears in the raw argument
// payload. An empty Tools list applies the rule to every tool.
type Rule struct {
	Tools []string
	Deny  []string
}

func (r Rule) matchesTool(name string) bool {
	if len(r.Tools) == 0 {
		return true
	}
	for _, t := range r.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// RuleSet is an ordered list of deny rules. The zero value allows
// everything.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// NewCommandDenyList builds the default policy: the given substrings are
// forbidden in command-execution and script arguments.
func NewCommandDenyList(patterns []string) *RuleSet {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return NewRuleSet()
	}
	return NewRuleSet(Rule{
		Tools: []string{"execute_command", "run_script"},
		Deny:  cleaned,
	})
}

func (s *RuleSet) Check(name string, args string) error {
	for _, rule := range s.rules {
		if !rule.matchesTool(name) {
			continue
		}
		for _, deny := range rule.Deny {
			if strings.Contains(args, deny) {
				return fmt.Errorf("%w: argument matches forbidden pattern %q", core.ErrPolicyDenied, deny)
			}
		}
	}
	return nil
}
