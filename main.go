package main

import (
	"os"

	"github.com/williamokano/site_backuper/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
