/*
Package domain contains the core types of the USSD session automation engine.

It defines the borrowed UI-tree views the host hands to the engine, the session
result delivered to the caller, the error taxonomy and the lifecycle hooks. The
package is free of I/O so every adapter and component can share it.

# Key Entities

  - Snapshot / Node: Borrowed views of the dialer's UI tree, valid for one classification pass.
  - Classification: The label a screen receives (terminal success, terminal error, continue).
  - Result: The single outcome of a session, with the frozen ScreenLog.
  - LifecycleHooks: Callbacks for observability (session start, screen, action, resolve).
*/
package domain
