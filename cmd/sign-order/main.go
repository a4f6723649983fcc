package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drinkius/gearbot/pkg/api"
	"github.com/drinkius/gearbot/pkg/crypto"
)

// Offline signing utility: builds a recurring purchase order, signs it with
// EIP-712, and prints the JSON body for POST /api/v1/orders. The nonce must
// match GET /api/v1/accounts/{address}/nonce at submission time.
func main() {
	var signer *crypto.Signer
	var err error
	if keyHex := os.Getenv("PRIVATE_KEY"); keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(keyHex)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	nonce := uint64(0)
	if _, err := fmt.Sscan(os.Getenv("NONCE"), &nonce); err != nil && os.Getenv("NONCE") != "" {
		fmt.Printf("Error: invalid NONCE: %v\n", err)
		os.Exit(1)
	}

	// Example order: spend 100 USDC (6 decimals) per day, capped at 1000 USDC.
	msg := &crypto.OrderMessage{
		Owner:             signer.Address(),
		Manager:           common.HexToAddress("0x00000000000000000000000000000000000000A1"),
		Account:           common.HexToAddress(envOr("ACCOUNT", "0x00000000000000000000000000000000000000B1")),
		TokenOut:          common.HexToAddress(envOr("TOKEN_OUT", "0x00000000000000000000000000000000000000E0")),
		Budget:            big.NewInt(1_000_000_000),
		Interval:          big.NewInt(86400),
		AmountPerInterval: big.NewInt(100_000_000),
		Deadline:          big.NewInt(0), // No expiry
		Nonce:             new(big.Int).SetUint64(nonce),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Account: %s\n", msg.Account.Hex())
	fmt.Printf("  TokenOut: %s\n", msg.TokenOut.Hex())
	fmt.Printf("  Budget: %s\n", msg.Budget.String())
	fmt.Printf("  Interval: %ss\n", msg.Interval.String())
	fmt.Printf("  AmountPerInterval: %s\n", msg.AmountPerInterval.String())
	fmt.Printf("  Nonce: %d\n\n", nonce)

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignOrder(signer, msg)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	fmt.Println("Verifying signature...")
	recovered, err := eip712Signer.RecoverOrderSigner(msg, signature)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if recovered != msg.Owner {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Signer: %s\n\n", recovered.Hex())

	req := api.SubmitOrderRequest{
		Order: api.OrderPayload{
			Owner:             msg.Owner.Hex(),
			Manager:           msg.Manager.Hex(),
			Account:           msg.Account.Hex(),
			TokenOut:          msg.TokenOut.Hex(),
			Budget:            msg.Budget.String(),
			Interval:          msg.Interval.Uint64(),
			AmountPerInterval: msg.AmountPerInterval.String(),
			Deadline:          msg.Deadline.Uint64(),
		},
		Nonce:     nonce,
		Signature: fmt.Sprintf("0x%x", signature),
	}
	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("To submit this order:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(reqJSON))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
