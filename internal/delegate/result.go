package delegate

type resultKind int

const (
	resultEmpty resultKind = iota
	resultError
	resultOK
)

// Result is the tagged outcome of a task: Empty, Error or Ok(value).
//
// Empty means "I produced no direct result"; a task returns it when it has
// fanned out to children or external completions that will contribute the
// real results. Empty results are filtered out before the group callback
// fires.
type Result struct {
	kind  resultKind
	err   error
	value any
}

// Empty returns the sentinel no-result Result.
func Empty() Result {
	return Result{}
}

// Errored wraps a task failure.
func Errored(err error) Result {
	return Result{kind: resultError, err: err}
}

// Ok wraps a task's produced value.
func Ok(value any) Result {
	return Result{kind: resultOK, value: value}
}

func (r Result) IsEmpty() bool {
	return r.kind == resultEmpty
}

// Err returns the task failure, or nil for Empty and Ok results.
func (r Result) Err() error {
	return r.err
}

// Value returns the wrapped value, nil unless the result is Ok.
func (r Result) Value() any {
	return r.value
}

func (r Result) IsOK() bool {
	return r.kind == resultOK
}
