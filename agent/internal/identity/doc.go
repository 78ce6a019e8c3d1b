// Package identity resolves who the agent is to the server: the agent ID
// (host name unless configured) and the agent key.
//
// Keys supplied on the command line or typed interactively are validated
// remotely before Enroll persists them to the user keystore.
package identity
