package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"surveychain/crypto"
	"surveychain/native/survey"
)

// surveyctl is the manager-side companion tool: it keeps the ed25519 signing
// key in an encrypted file and produces the proof signatures the ledger
// expects alongside each mutating request.

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		printUsage()
		return
	}

	var err error
	switch args[0] {
	case "generate-key":
		err = generateKey(args[1:])
	case "show":
		err = show(args[1:])
	case "sign-create":
		err = signCreate(args[1:])
	case "sign-cancel":
		err = signCancel(args[1:])
	case "sign-pay":
		err = signPay(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: surveyctl <command> [args]

Commands:
  generate-key <file>                                 create a new manager key
  show <file> [prefix]                                print the address and public key
  sign-create <file> <token> <expire> <owner> <id> <limit> <reward> <hash-b64> <denom> <gas>
  sign-cancel <file> <token> <expire> <id>
  sign-pay    <file> <token> <expire> <id,id,...> <addr,addr,...>

The keystore passphrase is read from SURVEYCTL_PASSPHRASE.`)
}

func passphrase() (string, error) {
	pass := os.Getenv("SURVEYCTL_PASSPHRASE")
	if pass == "" {
		return "", fmt.Errorf("SURVEYCTL_PASSPHRASE is not set")
	}
	return pass, nil
}

func loadKey(file string) (*crypto.PrivateKey, error) {
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(file, pass)
}

func generateKey(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: generate-key <file>")
	}
	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(args[0], key, pass); err != nil {
		return err
	}
	fmt.Printf("Key saved to %s\n", args[0])
	fmt.Printf("Public key (base64): %s\n", base64.StdEncoding.EncodeToString(key.PubKey().Bytes()))
	fmt.Printf("Public key (hex):    %x\n", key.PubKey().Bytes())
	return nil
}

func show(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show <file> [prefix]")
	}
	prefix := "svy"
	if len(args) > 1 {
		prefix = args[1]
	}
	key, err := loadKey(args[0])
	if err != nil {
		return err
	}
	pub := key.PubKey()
	fmt.Printf("Address:             %s\n", pub.Address(crypto.NormalizePrefix(prefix)))
	fmt.Printf("Public key (base64): %s\n", base64.StdEncoding.EncodeToString(pub.Bytes()))
	fmt.Printf("Public key (hex):    %x\n", pub.Bytes())
	return nil
}

func printProof(key *crypto.PrivateKey, digest [32]byte) {
	sig := key.Sign(digest[:])
	fmt.Printf("Digest (hex):        %s\n", hex.EncodeToString(digest[:]))
	fmt.Printf("Signature (base64):  %s\n", base64.StdEncoding.EncodeToString(sig))
	fmt.Printf("Public key (base64): %s\n", base64.StdEncoding.EncodeToString(key.PubKey().Bytes()))
}

func signCreate(args []string) error {
	if len(args) < 10 {
		return fmt.Errorf("usage: sign-create <file> <token> <expire> <owner> <id> <limit> <reward> <hash-b64> <denom> <gas>")
	}
	key, err := loadKey(args[0])
	if err != nil {
		return err
	}
	expire, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("expire: %w", err)
	}
	limit, err := strconv.ParseUint(args[5], 10, 32)
	if err != nil {
		return fmt.Errorf("limit: %w", err)
	}
	reward, ok := new(big.Int).SetString(args[6], 10)
	if !ok {
		return fmt.Errorf("invalid reward amount %q", args[6])
	}
	hash, err := base64.StdEncoding.DecodeString(args[7])
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	gas, ok := new(big.Int).SetString(args[9], 10)
	if !ok {
		return fmt.Errorf("invalid gas amount %q", args[9])
	}
	digest, err := survey.CreateSurveyDigest(args[1], expire, args[3], args[4], uint32(limit), reward, hash, args[8], gas)
	if err != nil {
		return err
	}
	printProof(key, digest)
	return nil
}

func signCancel(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: sign-cancel <file> <token> <expire> <id>")
	}
	key, err := loadKey(args[0])
	if err != nil {
		return err
	}
	expire, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("expire: %w", err)
	}
	digest, err := survey.CancelSurveyDigest(args[1], expire, args[3])
	if err != nil {
		return err
	}
	printProof(key, digest)
	return nil
}

func signPay(args []string) error {
	if len(args) < 5 {
		return fmt.Errorf("usage: sign-pay <file> <token> <expire> <id,id,...> <addr,addr,...>")
	}
	key, err := loadKey(args[0])
	if err != nil {
		return err
	}
	expire, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("expire: %w", err)
	}
	ids := strings.Split(args[3], ",")
	participants := strings.Split(args[4], ",")
	if len(ids) != len(participants) {
		return fmt.Errorf("%d survey ids but %d participants", len(ids), len(participants))
	}
	digest, err := survey.PayRewardsDigest(args[1], expire, ids, participants)
	if err != nil {
		return err
	}
	printProof(key, digest)
	return nil
}
