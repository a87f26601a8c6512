package main

import "chore-planner/internal/cli"

func main() {
	cli.Execute()
}
