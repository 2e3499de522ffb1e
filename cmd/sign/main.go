// Command sign answers authentication challenges with an Ed25519 private key.
package main

import (
	"bufio"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func loadPrivateKey(filename string) (ed25519.PrivateKey, error) {
	privKeyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return parsePrivateKey(privKeyBytes)
}

func parsePrivateKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("not an Ed25519 private key")
	}
	return edPriv, nil
}

// signChallenge returns the base64 signature of a base64 challenge.
func signChallenge(key ed25519.PrivateKey, challengeB64 string) (string, error) {
	challenge, err := base64.StdEncoding.DecodeString(challengeB64)
	if err != nil {
		return "", errors.New("invalid base64")
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, challenge)), nil
}

// run reads challenges line by line until EOF or "quit".
func run(key ed25519.PrivateKey, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("Enter challenge (base64): "))
		if !scanner.Scan() {
			break
		}

		challengeB64 := strings.TrimSpace(scanner.Text())
		if challengeB64 == "" {
			continue
		}
		if challengeB64 == "quit" {
			break
		}

		sig, err := signChallenge(key, challengeB64)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}
		fmt.Fprintln(out, outputStyle.Render("Signature: "+sig))
	}
	return scanner.Err()
}

func main() {
	keyFile := flag.String("key", "privkey.pem", "PEM encoded PKCS#8 Ed25519 private key")
	flag.Parse()

	privKey, err := loadPrivateKey(*keyFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error loading private key: "+err.Error()))
		os.Exit(1)
	}

	fmt.Println("Enter challenges one by one. Type 'quit' to exit.")
	if err := run(privKey, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading input:", err)
		os.Exit(1)
	}
}
