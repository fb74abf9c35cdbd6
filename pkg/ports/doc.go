/*
Package ports defines the driven ports (interfaces) of the Sluice engine.

These interfaces decouple the execution controller from the job backend,
storage, abort signalling and notification delivery.

# Key Interfaces

  - Executor: submits jobs, reports completion and instantiates job templates.
  - ScheduleStore: persists and loads whole schedules.
  - AbortSignal: out-of-band abort marker polled between steps.
  - Notifier: fire-and-forget email delivery.
  - DistributedLocker: guarantees a single active traversal per schedule.
*/
package ports
