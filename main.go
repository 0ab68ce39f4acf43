package main

import (
	"github.com/tenkdog/jarvis/cmd"
	_ "time/tzdata"
)

func main() {
	cmd.Execute()
}
