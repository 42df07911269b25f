package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cfortin/triage/tree"
)

// NodeEvaluationError is a recoverable per-record failure inside one
// node: missing config, unresolved field, no matching condition, lookup
// misses. It never escapes the single-record boundary.
type NodeEvaluationError struct {
	NodeID string
	msg    string
}

func (e *NodeEvaluationError) Error() string {
	return fmt.Sprintf("node %s: %s", e.NodeID, e.msg)
}

func nodeErrorf(nodeID, format string, args ...any) *NodeEvaluationError {
	return &NodeEvaluationError{NodeID: nodeID, msg: fmt.Sprintf(format, args...)}
}

// evalContext carries the record and the pre-fetched lookup tables
// through one traversal.
type evalContext struct {
	record  *VulnerabilityInput
	lookups Lookups
}

// User-authored regex patterns are bounded in both size and runtime so
// a hostile tree cannot stall evaluation.
const (
	maxRegexPatternLength = 200
	regexTimeout          = time.Second
)

// safeRegexMatch runs an unanchored pattern search under the bounds
// above. Oversized or invalid patterns and timeouts all report false,
// never an error.
func safeRegexMatch(pattern, text string) bool {
	if len(pattern) > maxRegexPatternLength {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}

	done := make(chan bool, 1)
	go func() {
		done <- re.MatchString(text)
	}()

	select {
	case matched := <-done:
		return matched
	case <-time.After(regexTimeout):
		return false
	}
}

// toFloat coerces a value for the ordering operators. Booleans count
// as 1/0 and numeric strings parse; anything else is an error.
func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", value)
	}
}

func stringify(value any) string {
	return fmt.Sprint(value)
}

// looseEquals compares two values the way JSON-decoded data expects:
// numerically when both sides are numeric, by string form otherwise.
func looseEquals(a, b any) bool {
	fa, errA := toFloat(a)
	fb, errB := toFloat(b)
	if errA == nil && errB == nil {
		return fa == fb
	}
	if errA != nil && errB != nil {
		return stringify(a) == stringify(b)
	}
	return false
}

// evaluateSimple applies one operator to a subject value. Null handling
// comes first: IS_NULL/IS_NOT_NULL test the value directly, and a nil
// subject fails every other operator.
func evaluateSimple(value any, op tree.Operator, condValue any) (bool, error) {
	switch op {
	case tree.OpIsNull:
		return value == nil, nil
	case tree.OpIsNotNull:
		return value != nil, nil
	}

	if value == nil {
		return false, nil
	}

	switch op {
	case tree.OpEquals:
		return looseEquals(value, condValue), nil
	case tree.OpNotEquals:
		return !looseEquals(value, condValue), nil

	case tree.OpGreaterThan, tree.OpGreaterThanOrEqual, tree.OpLessThan, tree.OpLessThanOrEqual:
		left, err := toFloat(value)
		if err != nil {
			return false, err
		}
		right, err := toFloat(condValue)
		if err != nil {
			return false, err
		}
		switch op {
		case tree.OpGreaterThan:
			return left > right, nil
		case tree.OpGreaterThanOrEqual:
			return left >= right, nil
		case tree.OpLessThan:
			return left < right, nil
		default:
			return left <= right, nil
		}

	case tree.OpContains:
		return strings.Contains(stringify(value), stringify(condValue)), nil
	case tree.OpNotContains:
		return !strings.Contains(stringify(value), stringify(condValue)), nil
	case tree.OpRegex:
		return safeRegexMatch(stringify(condValue), stringify(value)), nil

	case tree.OpIn:
		return valueInSet(value, condValue), nil
	case tree.OpNotIn:
		return !valueInSet(value, condValue), nil
	}

	return false, nil
}

// valueInSet tests membership against either a literal list or a
// comma-split string.
func valueInSet(value, condValue any) bool {
	if list, ok := condValue.([]any); ok {
		for _, item := range list {
			if looseEquals(value, item) {
				return true
			}
		}
		return false
	}
	needle := stringify(value)
	for _, item := range strings.Split(stringify(condValue), ",") {
		if needle == item {
			return true
		}
	}
	return false
}

// evaluateCriterion evaluates one criterion of a compound condition,
// substituting the node's subject value when the criterion names no
// field of its own.
func evaluateCriterion(criterion tree.Criterion, subject any, ctx *evalContext) (bool, error) {
	value := subject
	if criterion.Field != nil {
		value = ctx.record.Resolve(*criterion.Field)
	}
	return evaluateSimple(value, criterion.Operator, criterion.Value)
}

// evaluateCondition decides whether a subject value satisfies a
// condition, in either simple or compound mode.
func evaluateCondition(value any, condition *tree.Condition, ctx *evalContext) (bool, error) {
	if condition.IsCompound() {
		matchedAny := false
		for i := range condition.Criteria {
			ok, err := evaluateCriterion(condition.Criteria[i], value, ctx)
			if err != nil {
				return false, err
			}
			if condition.Logic == tree.LogicAnd && !ok {
				return false, nil
			}
			if ok {
				matchedAny = true
			}
		}
		if condition.Logic == tree.LogicAnd {
			return true, nil
		}
		return matchedAny, nil
	}

	if condition.Operator != nil {
		return evaluateSimple(value, *condition.Operator, condition.Value)
	}

	return false, nil
}
