/*
Package runner holds the pieces a foreground run of a schedule needs around
the engine: OS signal handling and progress reporting.

# Key Components

  - SignalManager: the first interrupt requests a graceful abort, the second
    cancels the run context.
  - Reporter: prints lifecycle events as text or JSON lines.

# Usage

	sm := runner.NewSignalManager(func() {
		_ = engine.Abort(context.Background(), name)
	})
	defer sm.Stop()

	rep := runner.NewReporter(os.Stdout, runner.FormatText)
	status, err := engine.Run(sm.Context(), name)
*/
package runner
