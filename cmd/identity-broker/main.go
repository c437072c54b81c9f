// Package main is the entrypoint for the identity-broker session service.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/entraunix/identity-broker/internal/server"
	"github.com/entraunix/identity-broker/pkg/protoversion"
)

const usage = `Usage: identity-broker [command]
       identity-broker serve      Start the session broker (forwards to the system-bus device broker).
       identity-broker version    Print the broker version.

Commands:
  serve      (default) Register on the session bus and forward calls to the device broker peer.
  version    Print the broker version and exit.

Environment: PEER_BUS_NAME, PEER_OBJECT_PATH, PEER_INTERFACE, PEER_CALL_TIMEOUT,
CREDENTIAL_RESOLVE_TIMEOUT, AUDIT_COMMS_URL, AUDIT_SUBJECT, SERVICE_NAME, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "version":
		fmt.Println(protoversion.BrokerVersion)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("identity-broker: %v", err)
	}
}
