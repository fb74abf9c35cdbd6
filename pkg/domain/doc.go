/*
Package domain contains the core model of the Sluice workflow engine.

It defines the entities a schedule is made of and the rules that keep them
consistent. The package is pure: no I/O, no persistence and no process
execution happen here.

# Key Entities

  - Value / Variable / VariableStore: typed variables (float, bool, string)
    with a current and an original (reset) value, kept in a single
    name-keyed table.
  - Operator: a small in-process instruction identified by an OperatorKind.
  - Job: a unit of work delegated to an external executor.
  - Edge: a plain successor link or a fork on a boolean variable.
  - NodeRef: the resolved kind of a node name (job, operator, WAIT, EXIT).
  - Schedule: the aggregate that is persisted and executed.
*/
package domain
