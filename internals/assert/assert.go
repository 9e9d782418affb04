package assert

import "fmt"

// Assert panics when the condition does not hold. Only for startup
// invariants that leave the process unusable when broken.
func Assert(condition bool, msg string, other ...any) {
	if !condition {
		panic(fmt.Sprint(append([]any{msg}, other...)...))
	}
}

func AssertNil(value any, msg string, other ...any) {
	Assert(value == nil, msg, other...)
}
