package main

import "github.com/bookingd/apiserver/cmd"

func main() {
	cmd.Execute()
}
