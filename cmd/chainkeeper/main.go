package main

import "github.com/oshokin/chainkeeper/cmd/chainkeeper/cmd"

func main() {
	cmd.Execute()
}
