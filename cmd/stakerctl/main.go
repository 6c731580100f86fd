package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"lmstaker/cmd/internal/passphrase"
	"lmstaker/crypto"
)

const (
	tokenCommand   = "token"
	addrCommand    = "addr"
	getCommand     = "get"
	keygenCommand  = "keygen"
	defaultPassEnv = "STAKER_KEYSTORE_PASS"
	defaultURL     = "http://127.0.0.1:8090"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case tokenCommand:
		err = runToken(os.Args[2:], os.Stdout)
	case addrCommand:
		err = runAddr(os.Args[2:], os.Stdout)
	case getCommand:
		err = runGet(os.Args[2:], os.Stdout)
	case keygenCommand:
		err = runKeygen(os.Args[2:], os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("STAKER_HMAC_SECRET"), "HMAC secret shared with stakerd")
	sub := fs.String("sub", "", "Caller address (bech32 or 0x hex)")
	scope := fs.String("scope", "", "Space separated scopes, e.g. operator")
	issuer := fs.String("iss", "lmstaker", "Token issuer")
	audience := fs.String("aud", "", "Token audience")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := issueToken(*secret, *sub, *scope, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func issueToken(secret, sub, scope, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("secret required")
	}
	addr, err := crypto.ParseAddress(sub)
	if err != nil {
		return "", fmt.Errorf("invalid subject: %w", err)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	claims := jwt.MapClaims{
		"sub": crypto.FormatAccount(addr),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	if strings.TrimSpace(scope) != "" {
		claims["scope"] = strings.TrimSpace(scope)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func runAddr(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(addrCommand, flag.ContinueOnError)
	hexValue := fs.String("hex", "", "0x-prefixed 20 byte address to encode")
	bech := fs.String("bech32", "", "bech32 address to decode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *hexValue != "":
		addr, err := crypto.ParseAddress(*hexValue)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "account %s\ntoken   %s\npool    %s\n",
			crypto.FormatAccount(addr), crypto.FormatToken(addr), crypto.FormatPool(addr))
		return err
	case *bech != "":
		addr, err := crypto.DecodeAddress(*bech)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "0x%s\n", hex.EncodeToString(addr.Bytes()))
		return err
	default:
		return errors.New("one of -hex or -bech32 is required")
	}
}

func runGet(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(getCommand, flag.ContinueOnError)
	baseURL := fs.String("url", defaultURL, "stakerd base URL")
	path := fs.String("path", "/v1/incentives", "API path to fetch")
	token := fs.String("token", os.Getenv("STAKER_TOKEN"), "Bearer token")
	caller := fs.String("caller", "", "Caller address sent as X-Caller when auth is disabled")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return fetch(ctx, http.DefaultClient, strings.TrimRight(*baseURL, "/")+*path, *token, *caller, out)
}

func fetch(ctx context.Context, client *http.Client, url, token, caller string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	_, err = out.Write(body)
	return err
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ContinueOnError)
	keystorePath := fs.String("keystore", "caller.keystore", "Output path for the generated keystore")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*keystorePath); err == nil {
			return fmt.Errorf("keystore file %s already exists (use -force to overwrite)", *keystorePath)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv, "Enter new keystore passphrase: ").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s\n", key.PubKey().Address().String())
	return err
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: stakerctl <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  %s   Issue an HS256 bearer token for stakerd\n", tokenCommand)
	fmt.Fprintf(w, "  %s    Convert addresses between hex and bech32\n", addrCommand)
	fmt.Fprintf(w, "  %s     Fetch a stakerd API path\n", getCommand)
	fmt.Fprintf(w, "  %s  Generate a caller key into an encrypted keystore\n", keygenCommand)
}
