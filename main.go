package main

import "github.com/nextlevelbuilder/dialer/cmd"

func main() {
	cmd.Execute()
}
