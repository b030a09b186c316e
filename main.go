/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "dydx-broker/cmd"

func main() {
	cmd.Execute()
}
