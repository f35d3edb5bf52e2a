// Package jacobi runs a distributed Jacobi relaxation on a square grid.
//
// The G x G grid is split into contiguous row bands, one per worker. Each
// iteration every worker exchanges its boundary rows with its neighbors,
// replaces every interior cell by the mean of its four neighbors, and joins a
// global reduction of the squared change. All workers stop after the same
// iteration, once the global diffnorm reaches the threshold or the iteration
// limit is hit; the bands are then gathered onto a coordinator.
//
// # Quick Start
//
// In-process run with four workers:
//
//	import (
//	    "github.com/arloliu/jacobi"
//	    "github.com/arloliu/jacobi/transport/local"
//	)
//
//	cfg := jacobi.DefaultConfig()
//	cfg.GridSize = 512
//	cfg.WorkerCount = 4
//
//	group := local.NewGroup(cfg.WorkerCount)
//	for _, comm := range group.Comms() {
//	    workerCfg := cfg
//	    go func() {
//	        solver, err := jacobi.NewSolver(&workerCfg, comm)
//	        // handle err
//	        res, err := solver.Run(ctx)
//	        // res.Grid is set on the coordinator
//	    }()
//	}
//
// # Transports
//
// A Solver talks to its peers only through a Communicator:
//
//   - transport/local: in-process group with rendezvous channels
//   - transport/natscomm: one worker per process over NATS, with rank
//     claiming and a startup rendezvous in a JetStream KV bucket
//
// # Failure
//
// Every error is fatal. A failing worker aborts the group, and every peer's
// Run returns ErrAborted. There are no timeouts on the data path; bound a run
// with the context passed to Run.
package jacobi
