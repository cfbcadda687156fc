package main

import "github.com/journalkit/voxlog/cmd"

func main() {
	cmd.Execute()
}
