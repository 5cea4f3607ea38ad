// Package tokenstore provides read-only access to operator-provisioned
// authentication tokens.
//
// Three backends with different deployment tradeoffs:
//   - File: local file, rejected unless its permissions are 0600
//   - Env: environment variable (CI jobs, containers)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//
// All backends are read-only on purpose: tokens acquired at runtime stay in
// memory and are never written to any of these stores.
package tokenstore
