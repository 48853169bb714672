package main

import "github.com/devicelab-dev/functest-core/pkg/cli"

func main() {
	cli.Execute()
}
