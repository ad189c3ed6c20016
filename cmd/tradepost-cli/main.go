package main

import "tradepost/cmd/tradepost-cli/cmd"

func main() {
	cmd.Execute()
}
