// Package keystore persists the agent's local settings as flat KEY=VALUE
// lines.
//
// Two files are merged: a base file shipped with the package and a user file
// holding values entered on this machine (the agent key, a server URL
// override). Writes only ever touch the user file and rewrite it whole
// (read, merge, write to a temp file, rename); nothing is appended.
//
// Lookup layers the process environment over the merged files, giving the
// precedence env > user > base used by the config package.
package keystore
