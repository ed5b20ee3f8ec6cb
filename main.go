package main

import "github.com/nextlevelbuilder/pagesnap/cmd"

func main() {
	cmd.Execute()
}
