// cmd/hashkey/main.go
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/services"
)

// Prints the ADMIN_API_KEY_HASH value for a key given as the first argument
// or on stdin.
func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			logrus.WithError(err).Fatal("Failed to read API key")
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		logrus.Fatal("API key must not be empty")
	}

	hash, err := services.HashAPIKey(key)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to hash API key")
	}
	fmt.Println(hash)
}
