// Package main is a development utility that generates the secrets a local
// console instance needs: the AES-256 master key for sealing cluster
// credentials and a short-lived admin JWT for exercising the API by hand.
// Do not use generated values in production.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func main() {
	// Encryption master key
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		log.Fatal(err)
	}
	encryptionKey := base64.StdEncoding.EncodeToString(keyBytes)

	// Dev JWT secret and an admin token signed with it
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		log.Fatal(err)
	}
	jwtSecret := base64.RawURLEncoding.EncodeToString(secretBytes)

	claims := jwt.MapClaims{
		"sub":      "dev-admin",
		"username": "dev-admin",
		"is_admin": true,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Development Secrets Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nexport ENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Printf("\nexport RMC_SECURITY_JWT_SECRET=%s\n", jwtSecret)
	fmt.Println("\n==========================================================")
	fmt.Printf("Authorization Header (valid 24h): Bearer %s\n", token)
	fmt.Println("==========================================================")
}
