// Package internal contains private implementation details for the uplink module.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - transport: HTTP client with retries, hooks, and error classification
//   - uploader: Form and resumable single-file upload paths
//   - validation: Input validation logic
//   - pool: Block buffer reuse
package internal
