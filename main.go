package main

import "mspro-labs/tender-pricer/cmd"

func main() {
	cmd.Execute()
}
