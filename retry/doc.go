// Package retry implements the bounded generate-then-validate loop used to
// obtain acceptable model output.
//
// Each attempt generates a candidate and runs every filter concurrently
// against it. The first candidate no filter objects to is returned. When all
// attempts are rejected the last candidate is returned anyway; only if every
// attempt failed to generate does Complete return an error.
package retry
