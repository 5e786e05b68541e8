package main

import "github.com/pders01/research-collector/cmd"

func main() {
	cmd.Execute()
}
