// Command agentctl is the CLI entry point for the task workflow engine
// (spec §6).
package main

func main() {
	Execute()
}
