// Package main provides the entry point for the eval-fanout CLI.
package main

import "yqhp/eval-fanout/cmd"

func main() {
	cmd.Execute()
}
