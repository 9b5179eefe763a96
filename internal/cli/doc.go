// Package cli is responsible for parsing command-line arguments, merging in
// the optional config file, and handling process-level concerns like exit
// codes. It translates user input into the application's internal
// configuration.
package cli
