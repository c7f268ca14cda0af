package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/arnavshah/attendance-api-go/pkg/auth"
)

// keygen prints a fresh JWT_SECRET, or the bcrypt hash of a password for
// seeding accounts by hand.
func main() {
	password := flag.String("hash", "", "print the bcrypt hash of this password instead of a secret")
	size := flag.Int("bytes", 32, "secret length in bytes")
	flag.Parse()

	if *password != "" {
		hash, err := auth.HashPassword(*password)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("JWT_SECRET=%s\n", hex.EncodeToString(buf))
}
