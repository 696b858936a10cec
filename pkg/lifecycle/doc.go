// Package lifecycle provides the generic lifecycle controller of a CANopen
// master driver.
//
// The controller owns the ordered startup and teardown of the driver and
// delegates protocol-specific work to a Hooks implementation supplied by
// the concrete driver.
//
// # Usage
//
//	ctrl := lifecycle.New(store, driver,
//	    lifecycle.WithLogger(logger),
//	    lifecycle.WithBus(can.SocketCAN(logger)),
//	)
//
//	if err := ctrl.Init(); err != nil { ... }
//	if err := ctrl.Configure(); err != nil { ... }
//	if err := ctrl.Activate(); err != nil { ... }
//
//	<-ctrl.Done() // spinner exited, e.g. after SIGTERM
//
//	if err := ctrl.Shutdown(); err != nil { ... }
//
// # State Machine
//
// Valid transitions:
//   - Uninitialized -> Initialized (Init)
//   - Initialized -> Configured (Configure)
//   - Configured -> Activated (Activate)
//   - Activated -> Configured (Deactivate)
//   - Configured -> Initialized (Cleanup)
//   - any -> Uninitialized (Shutdown)
//
// Operations called in the wrong state return a *MasterError wrapping one of
// ErrAlreadyConfigured, ErrAlreadyActivated, ErrNotInitialised,
// ErrNotConfigured or ErrNotActivated and leave the state unchanged.
//
// # Concurrency
//
// Flag accessors are lock-free and may be called from any goroutine. The
// operations themselves are serialized by the controller. Hooks run while
// the controller is held and must not call controller operations.
package lifecycle
