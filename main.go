/*
main.go

sharesync keeps local working directories and a VPN-protected network
share in step.
*/
package main

import (
	"github.com/sharesync/sharesync/cmd"
	"github.com/sharesync/sharesync/pkg/logger"
)

func main() {
	logger.InitializeWithFallback()
	cmd.Execute()
}
