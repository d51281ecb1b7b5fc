package main

import "github.com/shirlab/vilachat/cmd"

func main() {
	cmd.Execute()
}
