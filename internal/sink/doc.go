// Package sink serializes the decision stream: timestamped CSV records, one
// per input frame, with a no-silent-empty-output policy.
package sink
