// Package exposure evaluates the access-control metadata of cloud resources
// and produces exposure verdicts.
//
// Everything here is a pure function of its arguments: the package performs
// no I/O, holds no shared mutable state and never logs. Callers fetch the
// descriptors, evaluate them (concurrently if they like), and fold the
// resulting verdicts with Aggregate once evaluation is complete.
package exposure
