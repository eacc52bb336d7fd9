// Command scanbay is the CLI for the scanbay product identification daemon:
// it submits jobs, inspects their results, and manages the daemon process.
package main
