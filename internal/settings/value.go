package settings

// Value is an option that is either a literal string or a rule evaluated
// against the object key, such as a content disposition built from the
// file name.
type Value struct {
	literal string
	rule    func(key string) string
}

// Literal returns a Value that resolves to s for every key.
func Literal(s string) Value {
	return Value{literal: s}
}

// Rule returns a Value computed from the object key.
func Rule(fn func(key string) string) Value {
	return Value{rule: fn}
}

// Resolve evaluates v for key.
func (v Value) Resolve(key string) string {
	if v.rule != nil {
		return v.rule(key)
	}
	return v.literal
}

// IsRule reports whether v depends on the key.
func (v Value) IsRule() bool {
	return v.rule != nil
}

// IsZero reports whether v is the empty literal.
func (v Value) IsZero() bool {
	return v.rule == nil && v.literal == ""
}
