// Package process supervises a single long-running child process.
//
// The bridge uses it to run the companion daemon whose log output carries
// device reports. The manager captures the child's output (handing stdout to
// a consumer when one is configured), optionally restarts it after failures,
// and shuts it down by signalling its whole process group.
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:          "ha_driven",
//	    Binary:        "ha_driven",
//	    StdoutHandler: relay.Consume,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
