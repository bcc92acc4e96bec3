package util

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrKeyMismatch = errors.New("private key does not match address")

// secp256k1 密钥对，账户地址由公钥推导
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// 生成新的密钥对
func GetKeyPair() (KeyPair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{PrivateKey: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// 从十六进制私钥导入，允许 0x 前缀
func ImportKey(privateKeyHex string) (KeyPair, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{PrivateKey: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// 校验私钥与地址是否对应
func CheckKey(privateKeyHex string, address common.Address) error {
	kp, err := ImportKey(privateKeyHex)
	if err != nil {
		return err
	}
	if kp.Address != address {
		return ErrKeyMismatch
	}
	return nil
}

func (k KeyPair) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(k.PrivateKey))
}

func (k KeyPair) PublicKeyHex() string {
	return hexutil.Encode(crypto.FromECDSAPub(&k.PrivateKey.PublicKey))
}
