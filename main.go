/*
Copyright © 2025 tieubaoca
*/
package main

import (
	"github.com/tieubaoca/tables-retriever/cmd"
)

func main() {
	cmd.Execute()
}
