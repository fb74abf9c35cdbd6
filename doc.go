/*
Package sluice is a resumable workflow engine for long-running batch pipelines.

A schedule is a directed graph of job nodes, operator nodes and two reserved
nodes, WAIT and EXIT. The engine walks the graph one node at a time: it
submits jobs to an external backend and polls them, evaluates operators over
the schedule's typed variables, and follows plain or conditional edges. The
whole schedule, including the current position, is saved after every step,
so a run interrupted by a crash or a restart resumes where it stopped.

# Concept

Sluice separates the graph and its state (the Schedule aggregate) from the
things it drives (ports): the job Executor, the ScheduleStore, the
AbortSignal and the Notifier. The defaults keep schedules as YAML files and
run jobs as local processes, but every port can be replaced.

# Usage

	engine, err := sluice.New(".sluice/schedules")
	if err != nil {
		log.Fatal(err)
	}

	b := dsl.New("nightly")
	b.Float("retries", 0)
	fetch := b.Job("fetch", domain.JobModeOverwrite).Start()
	fetch.Go(b.Wait())
	b.Wait().Go(b.Exit())
	s, _, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := engine.Create(ctx, s); err != nil {
		log.Fatal(err)
	}
	status, err := engine.Run(ctx, "nightly")

Another process can stop the run with Engine.Abort; it takes effect at the
next node boundary.
*/
package sluice
