/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/

// @title        Nestora API
// @version      1.0
// @description  Account, session and profile endpoints of the Nestora backend.
// @BasePath     /api/v1
package main

import "github.com/mzaid0/Nestora/cmd"

func main() {
	cmd.Execute()
}
