package main

import "github.com/vkadlec/face-attendance/cmd"

func main() {
	cmd.Execute()
}
