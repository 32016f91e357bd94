// Command concierge plans and executes household tasks with a planner and
// executor agent pair. Run state lives under .concierge/ in the project
// directory so an interrupted task resumes where it left off.
package main

import "github.com/conciergehq/concierge/internal/cli"

func main() {
	cli.Execute()
}
