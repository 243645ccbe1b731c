/*
Package ports defines the driven ports (interfaces) of the USSD engine.

These interfaces decouple the session controller from the host platform and from
storage, so the same engine runs against an adb-attached phone, a replayed
scenario or an embedding mobile app.

# Key Interfaces

  - Dialer: Starts a USSD session on the device for a code.
  - SnapshotFeed: Delivers UI-tree snapshots of the dialer application.
  - ResultStore: Persists resolved session results for operators.
  - DistributedLocker: Leases a device across processes (single engine per device).
*/
package ports
