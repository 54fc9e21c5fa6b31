package main

import (
	"encoding/base64"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/usched-go/usched/internal/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a curve25519 key pair for remote-auth bootstrapping",
	Long:  "Generates a fresh key pair of the same shape the remote PAKE handshake negotiates per-connection. Useful for out-of-band verification or for operators who want to pin a daemon's long-lived identity rather than trust only the password hash.",
	Run: func(cmd *cobra.Command, args []string) {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			log.Fatalf("keygen: %v", err)
		}
		fmt.Printf("public:  %s\n", base64.StdEncoding.EncodeToString(kp.Public[:]))
		fmt.Printf("private: %s\n", base64.StdEncoding.EncodeToString(kp.Private[:]))
	},
}
