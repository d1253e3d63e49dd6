/*
	Copyright 2024 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/gforce-sculpture/cmd"

func main() {
	cmd.Execute()
}
