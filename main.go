package main

import "github.com/CosmoTheDev/hubwatch/cmd"

func main() {
	cmd.Execute()
}
