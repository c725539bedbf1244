/*
Package stresstest runs checkout iterations with many virtual users and
records the outcome.

# Architecture

  - Config (config.go): run limits, ramp-up and validation
  - Executor (executor.go): one goroutine per virtual user, result collection
  - Manager (manager.go): SQLite persistence of runs, iterations and checks
  - Stats (stats.go): in-memory aggregation with percentiles
  - NewHTTPClient (client.go): pooled client shared by every virtual user

# Executor Design

Each virtual user loops on checkout.Runner.RunIteration until one of:
  - the run duration elapses
  - the shared iteration budget is spent
  - Stop is called or the parent context is cancelled

An iteration that has started always completes its requests; only the
think time is cut short. Virtual users start spread across the ramp-up
window, and each derives its random source from the run seed and its id.

Results go through a single channel to a collector which updates Stats and
writes iteration rows in batches of 100.

# Database Schema

SQLite database stores:
  - load_test_runs: one row per run with the final summary
  - iteration_metrics: one row per iteration
  - check_results: pass and fail counts per named check

# Example Usage

	manager, err := NewManager("checkoutload.db")
	if err != nil {
		return err
	}
	defer manager.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Runner: runner,
		Config: &Config{Name: "smoke", VUs: 10, Duration: 30 * time.Second},
	}, manager, logger)
	if err != nil {
		return err
	}

	executor.Start(ctx)
	if err := executor.Wait(); err != nil {
		return err
	}
	fmt.Println(executor.GetRun().IterationsTotal)
*/
package stresstest
