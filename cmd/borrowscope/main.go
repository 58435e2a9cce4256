// Package main is the entry point for the borrowscope viewer.
package main

import "os"

func main() {
	os.Exit(run())
}
