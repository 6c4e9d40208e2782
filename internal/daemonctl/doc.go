// Package daemonctl starts, stops and inspects the contentfactory daemon
// process on behalf of the CLI.
package daemonctl
