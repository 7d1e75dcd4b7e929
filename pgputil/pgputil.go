// Package pgputil wraps the OpenPGP operations the election needs: structural
// validation of armored keys and messages on the server side, and the
// encrypt/decrypt primitives used by the tally operator and the tests.
//
// The server only ever validates armor; it cannot decrypt ballots because the
// private key never leaves the operator's machine.
package pgputil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// Armor block types used by the voting clients.
const (
	MessageType    = "PGP MESSAGE"
	PublicKeyType  = "PGP PUBLIC KEY BLOCK"
	PrivateKeyType = "PGP PRIVATE KEY BLOCK"
)

var (
	// ErrNoPrivateKey means the supplied armor held no usable private key material.
	ErrNoPrivateKey = errors.New("no private key found in armored input")

	// ErrSelfTestFailed means the public/private key pair failed the round-trip check.
	ErrSelfTestFailed = errors.New("self test round trip did not reproduce the plaintext")
)

// IsValidPublicKey reports whether the string parses as an armored PGP public
// key. Parsing is the whole check, mirroring what the voting clients do before
// encrypting against the key.
func IsValidPublicKey(armored string) bool {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil || len(entities) == 0 {
		return false
	}
	return entities[0].PrimaryKey != nil
}

// IsEncryptedMessage reports whether the string is well-formed PGP message
// armor. The payload is not decrypted, only parsed.
func IsEncryptedMessage(armored string) bool {
	block, err := armor.Decode(strings.NewReader(armored))
	if err != nil || block.Type != MessageType {
		return false
	}

	// Armor decoded; require at least one parseable packet inside.
	reader := packet.NewReader(block.Body)
	if _, err := reader.Next(); err != nil {
		return false
	}
	return true
}

// EncryptMessage encrypts plaintext against the armored public key and returns
// PGP message armor.
func EncryptMessage(publicKeyArmored string, plaintext []byte) (string, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(publicKeyArmored))
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}

	var buf bytes.Buffer
	armorer, err := armor.Encode(&buf, MessageType, nil)
	if err != nil {
		return "", fmt.Errorf("start armor: %w", err)
	}

	writer, err := openpgp.Encrypt(armorer, entities, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("start encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("write plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish encryption: %w", err)
	}
	if err := armorer.Close(); err != nil {
		return "", fmt.Errorf("finish armor: %w", err)
	}

	return buf.String(), nil
}

// DecryptMessage decrypts PGP message armor with the given keyring and returns
// the plaintext.
func DecryptMessage(keyring openpgp.EntityList, armored string) ([]byte, error) {
	block, err := armor.Decode(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("decode armor: %w", err)
	}
	if block.Type != MessageType {
		return nil, fmt.Errorf("unexpected armor type %q", block.Type)
	}

	details, err := openpgp.ReadMessage(block.Body, keyring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	plaintext, err := io.ReadAll(details.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("decrypt body: %w", err)
	}
	return plaintext, nil
}

// ReadPrivateKey parses an armored private key and unlocks every encrypted
// key packet with the passphrase.
func ReadPrivateKey(armored string, passphrase string) (openpgp.EntityList, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	found := false
	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}
		found = true
		if entity.PrivateKey.Encrypted {
			if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("unlock private key: %w", err)
			}
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
				if err := subkey.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
					return nil, fmt.Errorf("unlock subkey: %w", err)
				}
			}
		}
	}
	if !found {
		return nil, ErrNoPrivateKey
	}
	return entities, nil
}

// SelfTest encrypts a known plaintext with the stored public key and decrypts
// it with the candidate private key. The tally must not start until this round
// trip succeeds, otherwise a mismatched key would mark every ballot corrupt.
func SelfTest(publicKeyArmored string, keyring openpgp.EntityList) error {
	const probe = "fraservotes key self test"

	armored, err := EncryptMessage(publicKeyArmored, []byte(probe))
	if err != nil {
		return fmt.Errorf("self test encrypt: %w", err)
	}
	plaintext, err := DecryptMessage(keyring, armored)
	if err != nil {
		return fmt.Errorf("self test decrypt: %w", err)
	}
	if string(plaintext) != probe {
		return ErrSelfTestFailed
	}
	return nil
}

// GenerateKeyPair creates a fresh keypair and returns both halves armored.
// When passphrase is non-empty the private key material is locked with it.
// Used by the volunteer key-generation tooling and the test suite.
func GenerateKeyPair(name, email, passphrase string) (publicKey string, privateKey string, err error) {
	entity, err := openpgp.NewEntity(name, "", email, nil)
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}

	if passphrase != "" {
		if err := entity.PrivateKey.Encrypt([]byte(passphrase)); err != nil {
			return "", "", fmt.Errorf("lock private key: %w", err)
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PrivateKey != nil {
				if err := subkey.PrivateKey.Encrypt([]byte(passphrase)); err != nil {
					return "", "", fmt.Errorf("lock subkey: %w", err)
				}
			}
		}
	}

	var priv bytes.Buffer
	privArmorer, err := armor.Encode(&priv, PrivateKeyType, nil)
	if err != nil {
		return "", "", fmt.Errorf("start private armor: %w", err)
	}
	if err := entity.SerializePrivateWithoutSigning(privArmorer, nil); err != nil {
		return "", "", fmt.Errorf("serialize private key: %w", err)
	}
	if err := privArmorer.Close(); err != nil {
		return "", "", fmt.Errorf("finish private armor: %w", err)
	}

	var pub bytes.Buffer
	pubArmorer, err := armor.Encode(&pub, PublicKeyType, nil)
	if err != nil {
		return "", "", fmt.Errorf("start public armor: %w", err)
	}
	if err := entity.Serialize(pubArmorer); err != nil {
		return "", "", fmt.Errorf("serialize public key: %w", err)
	}
	if err := pubArmorer.Close(); err != nil {
		return "", "", fmt.Errorf("finish public armor: %w", err)
	}

	return pub.String(), priv.String(), nil
}
