/*
Package deploy drives application deployments onto party clusters through a
durable multi-stage pipeline.

When a cluster becomes ready, one deployment job is queued per configured
application package. Each job walks three stages against the application
operator: copy the extracted package to the cluster's image store, register
the application type, create the application instance. Jobs and the work
queue live in the store, so a restart resumes every job at its last
committed stage.

# Work loop

	┌──────────────── PIPELINE PASS ────────────────┐
	│                                                │
	│  1. Peek queue head (no consume)               │
	│  2. Load the job record                        │
	│  3. Run the stage against the operator         │
	│  4. One transaction:                           │
	│       consume head                             │
	│       write advanced record + requeue          │
	│       (or delete record when terminal)         │
	│                                                │
	└────────────────────────────────────────────────┘

The stage runs outside any transaction so a slow operator call never holds
the store's write lock. A crash between the stage and the commit leaves the
head in place and the same stage runs again on restart; every stage treats
the operator's already-done responses (type already registered, instance
already exists) as success for exactly that reason.

Failure handling follows the operator error taxonomy: a transient failure
requeues the job unchanged at the tail so one unready cluster cannot block
the rest of the queue, an unusable package archive fails the job terminally,
and anything unrecognized stops the loop.

# Usage

	pipeline := deploy.New(deploy.Options{
		Store:        store,
		Applications: appOperator,
		Packages:     func() []types.ApplicationPackage { return cfg.Packages },
		ScratchDir:   scratchDir,
		Logger:       logger,
	})

	go pipeline.Run(ctx)

	ids, err := pipeline.QueueApplicationDeployment(ctx, address, port)
*/
package deploy
