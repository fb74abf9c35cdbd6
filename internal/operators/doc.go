/*
Package operators executes the fixed instruction set of operator nodes.

Inputs are resolved as variable names first and fall back to literals of the
slot's kind. Results are written to the output variable unless it is
"undefined". File operators expand ${var} references in their paths and fail
softly; arithmetic failures are fatal to the run.

The wait operator never sleeps here: it reports the remaining time and the
controller suspends between steps, where the abort signal is checked.
*/
package operators
