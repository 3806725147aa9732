package main

import "github.com/Unmesh-12634/HackMate-sub001/cmd"

func main() {
	cmd.Execute()
}
