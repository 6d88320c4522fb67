// Package store keeps a journal in SQLite instead of a text file.
//
// Each journal entry is one row of the entries table:
//   - seq: INTEGER PRIMARY KEY AUTOINCREMENT, the replay order
//   - ts_us: entry timestamp in microseconds
//   - hook: "<container>.<operation>"
//   - payload: the same text a file journal would hold after the second TAB
//
// Replay reads rows ORDER BY seq ASC, never by timestamp, so two entries
// stamped in the same microsecond replay in append order.
//
// # Database Configuration
//
//   - WAL mode: readers (inspect, follow) do not block the writer
//   - synchronous=FULL: an acknowledged Append survives power loss
//     (NORMAL when opened WithSync(false))
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: SQLite has a single writer
package store
