// Package types holds the wire contract shared by the agent and the
// reference server: endpoint paths, the credential header and the small JSON
// documents the server returns. The inventory payload itself is opaque to
// both sides and is not modelled here.
package types
