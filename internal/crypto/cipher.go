package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecrypt is the base error for all decryption failures. Callers use
// errors.Is(err, ErrDecrypt) to distinguish a record that cannot be
// decrypted from one that cannot be read at all.
var ErrDecrypt = errors.New("decrypt failed")

// ErrMalformed marks a record that is structurally invalid: bad base64,
// too short, missing magic, or a ciphertext that is not a whole number of
// blocks. These never occur from a wrong key alone.
var ErrMalformed = fmt.Errorf("%w: malformed record", ErrDecrypt)

// ErrBadPadding marks a record whose padding did not validate after block
// decryption. This is the usual symptom of a wrong key, and also of a
// corrupted final block.
var ErrBadPadding = fmt.Errorf("%w: invalid padding", ErrDecrypt)

// saltedMagic is the OpenSSL enc header carried by every record:
// "Salted__" followed by the 8 salt bytes, then the ciphertext.
const saltedMagic = "Salted__"

const saltSize = 8

// evpKDF derives an AES key and IV from a passphrase and record salt using
// OpenSSL's EVP_BytesToKey with a single MD5 round per block. This is the
// derivation the browser store's records use, so it is frozen here.
func evpKDF(passphrase, salt []byte, keySize, ivSize int) (key, iv []byte) {
	var derived, last []byte
	for len(derived) < keySize+ivSize {
		h := md5.New()
		h.Write(last)
		h.Write(passphrase)
		h.Write(salt)
		last = h.Sum(nil)
		derived = append(derived, last...)
	}
	return derived[:keySize], derived[keySize : keySize+ivSize]
}

// Encrypt encrypts plaintext under the session key and returns a
// self-describing base64 blob: "Salted__" + 8 random salt bytes + the
// AES-256-CBC ciphertext with PKCS#7 padding. The salt is fresh on every
// call, so encrypting the same plaintext twice yields different output.
func Encrypt(plaintext string, key Key) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating record salt: %w", err)
	}

	aesKey, iv := evpKDF(key, salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padding)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padding)
	}

	out := make([]byte, len(saltedMagic)+saltSize+len(padded))
	copy(out, saltedMagic)
	copy(out[len(saltedMagic):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltedMagic)+saltSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts a record blob produced by Encrypt (or by the browser
// store). Decryption needs only the blob and the key; the record salt is
// embedded in the blob. A structurally invalid blob returns ErrMalformed;
// a wrong key or corrupted tail returns ErrBadPadding. Both satisfy
// errors.Is(err, ErrDecrypt).
func Decrypt(blob []byte, key Key) (string, error) {
	data, err := base64.StdEncoding.DecodeString(string(blob))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if len(data) < len(saltedMagic)+saltSize || string(data[:len(saltedMagic)]) != saltedMagic {
		return "", ErrMalformed
	}

	salt := data[len(saltedMagic) : len(saltedMagic)+saltSize]
	encrypted := data[len(saltedMagic)+saltSize:]

	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", ErrMalformed
	}

	aesKey, iv := evpKDF(key, salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, encrypted)

	padding := int(decrypted[len(decrypted)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(decrypted) {
		return "", ErrBadPadding
	}
	for _, b := range decrypted[len(decrypted)-padding:] {
		if int(b) != padding {
			return "", ErrBadPadding
		}
	}

	return string(decrypted[:len(decrypted)-padding]), nil
}
