package main

import "hammer/cmd"

func main() {
	cmd.Execute()
}
