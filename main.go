/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/simkiosk/cmd"

func main() {
	cmd.Execute()
}
