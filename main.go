package main

import cmd "github.com/rohmanhakim/archivist/internal/cli"

func main() {
	cmd.Execute()
}
