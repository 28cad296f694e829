package loader

import (
	"bufio"
	"encoding/json"
	"strings"
	"unicode"
)

// Evaluator executes decrypted source text inside a namespace, binding its
// top-level definitions into ns.Values. Hosts with a real execution engine
// plug their own implementation in through ModuleLoader.SetEvaluator.
type Evaluator interface {
	Evaluate(source string, ns *Namespace) error
}

// DeclarativeEvaluator is the built-in evaluator: it binds top-level
// `NAME = <literal>` assignments, where the literal is JSON or a
// single-quoted string. Blank lines, comments, and statements it does not
// recognize are skipped, so units carrying imports or function definitions
// still activate with their literal bindings available.
type DeclarativeEvaluator struct{}

func (DeclarativeEvaluator) Evaluate(source string, ns *Namespace) error {
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx <= 0 || strings.HasPrefix(line[idx:], "==") {
			continue
		}

		name := strings.TrimSpace(line[:idx])
		if !validIdentifier(name) {
			continue
		}

		if value, ok := parseLiteral(strings.TrimSpace(line[idx+1:])); ok {
			ns.Values[name] = value
		}
	}

	return scanner.Err()
}

func parseLiteral(text string) (any, bool) {
	if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
		return text[1 : len(text)-1], true
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, false
	}
	return value, true
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
