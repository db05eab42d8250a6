// Package workpool runs tasks on a fixed set of workers that all drain one
// shared mpsc channel.
//
// Every submitted task runs exactly once, on whichever worker receives it
// first. Close stops intake, lets the workers finish the backlog and waits for
// them:
//
//	pool := workpool.New(workpool.WithWorkers(8))
//	fut, err := pool.Submit(func(ctx context.Context) error {
//		return process(ctx)
//	})
//	if err != nil {
//		return err
//	}
//	if err := fut.Await(); err != nil {
//		log.Println(err)
//	}
//	_ = pool.Close()
package workpool
