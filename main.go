package main

import (
	"homeguard/cmd"
)

func main() {
	cmd.Execute()
}
