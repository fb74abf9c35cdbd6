/*
Package persistence converts a Schedule to and from its textual document.

The document is key-ordered: scalar fields first, then one section per
variable kind, operators, jobs and edges, each section sorted by name (edges
keep their insertion order). YAML is the on-disk format; JSON is used by the
Redis store. Both decode through the same tolerant path: unknown keys are
ignored and optional fields take documented defaults, while the fields that
define the execution position fail the load when they are missing or dangling.

Defaults on read:

  - variable original value: the current value
  - operator input/output slots: "undefined"
  - job mode: "new"; job current_name: the node name; job has_started: false
  - edge is_fork: false
*/
package persistence
