// Package app contains the core application logic. It defines the App
// struct, its configuration, and the run lifecycle, decoupled from any
// specific entrypoint like the CLI.
package app
