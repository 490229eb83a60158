package main

import "bookmark-reconciler/cmd"

func main() {
	cmd.Execute()
}
