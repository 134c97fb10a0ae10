package main

import (
	"github.com/mchmarny/dosecheck/pkg/cli"
)

func main() {
	cli.Execute()
}
