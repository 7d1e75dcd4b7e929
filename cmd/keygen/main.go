// Command keygen creates the election keypair. The public half is uploaded to
// the server config; the private half stays with the operators until the count.
package main

import (
	"flag"
	"log"
	"os"

	"fraservotes-backend/pgputil"
)

func main() {
	log.SetFlags(0)

	name := flag.String("name", "FraserVotes Election", "key holder name")
	email := flag.String("email", "", "key holder email")
	passphrase := flag.String("passphrase", os.Getenv("KEYGEN_PASSPHRASE"), "passphrase locking the private key")
	publicOut := flag.String("public", "election_public.asc", "public key output file")
	privateOut := flag.String("private", "election_private.asc", "private key output file")
	flag.Parse()

	if *passphrase == "" {
		log.Println("warning: generating an unlocked private key, prefer -passphrase")
	}

	publicKey, privateKey, err := pgputil.GenerateKeyPair(*name, *email, *passphrase)
	if err != nil {
		log.Fatalf("failed to generate keypair: %v", err)
	}

	if err := os.WriteFile(*publicOut, []byte(publicKey), 0o644); err != nil {
		log.Fatalf("failed to write public key: %v", err)
	}
	// Private key is readable by the owner only
	if err := os.WriteFile(*privateOut, []byte(privateKey), 0o600); err != nil {
		log.Fatalf("failed to write private key: %v", err)
	}

	log.Printf("wrote %s and %s", *publicOut, *privateOut)
}
